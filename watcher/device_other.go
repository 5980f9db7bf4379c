//go:build !unix

package watcher

// Drive letters are separate roots on Windows, so the walk never has a
// mount to stop at.
func deviceID(string) (uint64, bool) { return 0, false }
