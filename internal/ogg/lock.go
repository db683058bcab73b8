package ogg

import "sync"

// Lock is the cooperative, recursive lock guarding a ByteSource. It is not
// an os-thread mutex: callers identify themselves with an arbitrary holder
// token (typically the address of the PageReader or PacketReader driving
// the operation) and TakeLock/ReleaseLock never block -- a mismatched
// holder fails fast with a SynchronizationLock error instead of deadlocking,
// matching the "thread-affinity lock" design note for languages without an
// obvious thread-identity primitive.
type Lock struct {
	mu     sync.Mutex
	holder any
	depth  int
}

// NewLock returns an unheld Lock.
func NewLock() *Lock {
	return &Lock{}
}

// TakeLock acquires the lock for holder, or increments the recursion depth
// if holder already owns it. It fails if a different holder owns the lock.
func (l *Lock) TakeLock(holder any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.depth == 0 {
		l.holder = holder
		l.depth = 1
		return nil
	}
	if l.holder != holder {
		return WrapError(SynchronizationLock, errLockHeldByOther)
	}
	l.depth++
	return nil
}

// ReleaseLock decrements the recursion depth for holder, releasing the lock
// at zero. It fails if holder does not currently own the lock.
func (l *Lock) ReleaseLock(holder any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.depth == 0 || l.holder != holder {
		return WrapError(SynchronizationLock, errReleaseMismatch)
	}
	l.depth--
	if l.depth == 0 {
		l.holder = nil
	}
	return nil
}

// HeldBy reports whether holder currently owns the lock.
func (l *Lock) HeldBy(holder any) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth > 0 && l.holder == holder
}

var (
	errLockHeldByOther = simpleError("lock held by a different holder")
	errReleaseMismatch = simpleError("release_lock called without a matching take_lock")
)

type simpleError string

func (e simpleError) Error() string { return string(e) }
