//go:build !windows

package dispatch

import "syscall"

// The indexer gets its own process group so a Ctrl-C aimed at the agent
// does not reach it.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid: true,
	}
}
