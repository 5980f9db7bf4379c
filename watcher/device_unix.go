//go:build unix

package watcher

import "golang.org/x/sys/unix"

func deviceID(path string) (uint64, bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return 0, false
	}
	return uint64(st.Dev), true
}
