package indexstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrLockTimeout is returned when the index lock could not be acquired in time.
var ErrLockTimeout = errors.New("index lock timeout")

// fileLock is an exclusive flock held on a dedicated lock file.
type fileLock struct {
	file *os.File
}

// acquireLock polls a non-blocking flock on lockPath until it succeeds, ctx is
// done or timeout elapses. The lock file is never unlinked: waiters may already
// hold a descriptor to it.
func acquireLock(ctx context.Context, lockPath string, timeout time.Duration) (*fileLock, error) {
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644) //nolint:gosec // path comes from config
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(timeout)
	wait := time.Millisecond

	for {
		err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &fileLock{file: file}, nil
		}
		if !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EINTR) {
			_ = file.Close()
			return nil, fmt.Errorf("flock %s: %w", lockPath, err)
		}
		if time.Now().After(deadline) {
			_ = file.Close()
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, lockPath)
		}

		select {
		case <-ctx.Done():
			_ = file.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		if wait < 25*time.Millisecond {
			wait *= 2
		}
	}
}

// release unlocks and closes the lock file. Safe to call more than once.
func (l *fileLock) release() {
	if l.file == nil {
		return
	}
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
