//go:build !unix

package fslock

import (
	"os"
)

// Lock is a no-op on non-Unix platforms.
type Lock struct {
	f *os.File
}

// Acquire is a best-effort lock on non-Unix platforms. It opens the
// file but does not acquire an OS-level lock.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	return &Lock{f: f}, nil
}

// AcquireBlocking behaves like Acquire on non-Unix platforms.
func AcquireBlocking(path string) (*Lock, error) {
	return Acquire(path)
}

// Unlock closes the lock file.
func (l *Lock) Unlock() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
