//go:build !windows

// Package filelock provides exclusive/shared advisory locks on open files
// so the broadcast log, mutation log, and chronicle stay safe across
// multiple writers sharing a state directory (background maintenance
// tasks, test harnesses, sibling processes).
package filelock

import (
	"os"

	"golang.org/x/sys/unix"
)

// Lock takes an exclusive advisory lock on f, blocking until available.
func Lock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

// RLock takes a shared advisory lock on f, blocking until available.
func RLock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_SH)
}

// Unlock releases whatever lock Lock/RLock took on f.
func Unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
