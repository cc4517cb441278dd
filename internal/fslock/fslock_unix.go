//go:build unix

// Package fslock provides advisory file locks for the JSON state files
// that parallel worktree agents share.
package fslock

import (
	"fmt"
	"os"
	"syscall"
)

// Lock holds an open file with an exclusive flock.
type Lock struct {
	f *os.File
}

// Acquire opens (or creates) the file at path and attempts a
// non-blocking exclusive flock. Returns an error if the lock is held
// by another process.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	return &Lock{f: f}, nil
}

// AcquireBlocking waits for the lock instead of failing when it is held.
func AcquireBlocking(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	return &Lock{f: f}, nil
}

// Unlock releases the flock and closes the file.
func (l *Lock) Unlock() error {
	if l.f == nil {
		return nil
	}
	_ = syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	return l.f.Close()
}
