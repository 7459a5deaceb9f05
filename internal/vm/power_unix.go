//go:build unix

package vm

import "golang.org/x/sys/unix"

// syncFD flushes a file descriptor's buffered writes to the underlying
// device — the platform call the teacher's power-controller device
// issued before acknowledging a poweroff request (vm/devices.go).
func syncFD(fd uintptr) error {
	return unix.Fsync(int(fd))
}
