package concurrency

import (
	"errors"
	"sync"
)

// ErrBusy is returned by Execute while another task holds the guard.
var ErrBusy = errors.New("another operation is already in progress")

// ConcurrencyGuard admits one task at a time without queueing: callers
// arriving while a task runs are rejected immediately with ErrBusy.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

// Execute runs task if the guard is free, holding the guard until the
// task returns.
func (g *ConcurrencyGuard) Execute(task func() error) error {
	g.mu.Lock()
	if g.isBusy {
		g.mu.Unlock()
		return ErrBusy
	}
	g.isBusy = true
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.isBusy = false
		g.mu.Unlock()
	}()
	return task()
}
