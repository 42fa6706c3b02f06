package dashboard

import (
	"context"
	"errors"
	"sync"
)

// Cell is an observable selector value. Every assignment notifies subscribers, even when
// the value is unchanged, the way form controls report value changes.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	subs  []func(context.Context) error
}

// NewCell creates a cell holding initial without notifying anyone.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Value returns the current value.
func (c *Cell[T]) Value() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Subscribe registers fn to run after every Set.
func (c *Cell[T]) Subscribe(fn func(context.Context) error) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// Set stores v and runs the subscribers synchronously, joining their errors.
func (c *Cell[T]) Set(ctx context.Context, v T) error {
	c.mu.Lock()
	c.value = v
	subs := append([]func(context.Context) error(nil), c.subs...)
	c.mu.Unlock()

	var errs []error
	for _, fn := range subs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// store assigns without notifying; used for batched programmatic initialisation.
func (c *Cell[T]) store(v T) {
	c.mu.Lock()
	c.value = v
	c.mu.Unlock()
}
