package observable

import (
	"context"
	"sync"
)

// Value is a publish-subscribe cell. Any number of goroutines may read it;
// writes never wait on readers. Subscribers only ever see the latest value,
// intermediate values are dropped when they fall behind.
type Value[T any] struct {
	mu     sync.RWMutex
	v      T
	subs   map[uint64]chan T
	nextID uint64
}

// New returns a cell holding initial
func New[T any](initial T) *Value[T] {
	return &Value[T]{
		v:    initial,
		subs: make(map[uint64]chan T),
	}
}

// Get returns the current value
func (c *Value[T]) Get() T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.v
}

// Set publishes v to readers and subscribers
func (c *Value[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.v = v
	for _, ch := range c.subs {
		offer(ch, v)
	}
}

// Update applies fn to the current value and publishes the result
func (c *Value[T]) Update(fn func(T) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.v = fn(c.v)
	for _, ch := range c.subs {
		offer(ch, c.v)
	}
	return c.v
}

// Subscribe returns a channel that receives the current value immediately
// and every later value. The subscription ends and the channel is closed
// once ctx is done; with a context that is never cancelled it lasts as long
// as the Value. No goroutine is held while the subscription is open.
func (c *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = ch
	ch <- c.v
	c.mu.Unlock()

	context.AfterFunc(ctx, func() {
		c.mu.Lock()
		delete(c.subs, id)
		close(ch)
		c.mu.Unlock()
	})

	return ch
}

// Subscribers returns the number of live subscriptions
func (c *Value[T]) Subscribers() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}

// offer replaces any unread value in the 1-slot channel with v. Called with
// the write lock held, so there is no competing sender.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}

// Reader is the read-only side of a Value
type Reader[T any] interface {
	Get() T
	Subscribe(ctx context.Context) <-chan T
}
