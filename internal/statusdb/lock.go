package statusdb

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is returned by acquireLock when the lock is already held by
// another process.
var ErrWouldBlock = errors.New("statusdb: lock is held by another process")

// fileLock is a held advisory lock on one file, released by Unlock.
type fileLock struct {
	f    *os.File
	path string
}

// acquireLock opens (creating if necessary) and exclusively flocks path,
// non-blocking, matching dpkg's FILE_LOCK_NOWAIT semantics.
func acquireLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0660)
	if err != nil {
		return nil, fmt.Errorf("statusdb: opening lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrWouldBlock
		}
		return nil, fmt.Errorf("statusdb: locking %s: %w", path, err)
	}
	return &fileLock{f: f, path: path}, nil
}

// Unlock releases the lock and closes the underlying file descriptor.
func (l *fileLock) Unlock() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	cerr := l.f.Close()
	l.f = nil
	if err != nil {
		return fmt.Errorf("statusdb: unlocking %s: %w", l.path, err)
	}
	return cerr
}

// frontendLocked reports whether a surrounding frontend (apt-get, etc.) has
// already taken the frontend lock and recorded that fact for child
// processes via DPKG_FRONTEND_LOCKED, in which case this process must not
// attempt to acquire it itself.
func frontendLocked() bool {
	_, ok := os.LookupEnv("DPKG_FRONTEND_LOCKED")
	return ok
}
