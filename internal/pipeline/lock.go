package pipeline

import (
	"errors"
	"sync/atomic"
)

// ErrBusy is returned when a corpus workflow is already running
var ErrBusy = errors.New("another corpus operation is in progress")

// RunLock prevents concurrent corpus workflows. Acquisition never blocks;
// callers surface ErrBusy to the client instead of queueing work behind a
// long-running fit.
type RunLock struct {
	busy atomic.Bool
}

// TryAcquire attempts to take the lock without blocking
func (l *RunLock) TryAcquire() bool {
	return l.busy.CompareAndSwap(false, true)
}

// Release frees the lock
func (l *RunLock) Release() {
	l.busy.Store(false)
}

// IsBusy reports whether a workflow currently holds the lock
func (l *RunLock) IsBusy() bool {
	return l.busy.Load()
}
