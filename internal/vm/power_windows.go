//go:build windows

package vm

import "golang.org/x/sys/windows"

// syncFD flushes fd via FlushFileBuffers, Windows having no fsync(2).
func syncFD(fd uintptr) error {
	return windows.FlushFileBuffers(windows.Handle(fd))
}
