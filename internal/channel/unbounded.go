package channel

import (
	"sync"
	"sync/atomic"

	"github.com/OCAP2/tetrad/internal/queue"
)

// Unbounded is a FIFO channel without a capacity limit. Send never blocks.
// A single goroutine pumps queued items into the delivery channel.
//
// Send and Close must be called from one goroutine (the producer).
type Unbounded[T any] struct {
	items  *queue.Queue[T]
	signal chan struct{}
	out    chan T
	done   chan struct{}

	closed     atomic.Bool
	closeOnce  sync.Once
	detachOnce sync.Once
	dropped    atomic.Uint64
}

// NewUnbounded creates an unbounded channel and starts its pump.
func NewUnbounded[T any]() *Unbounded[T] {
	u := &Unbounded[T]{
		items:  queue.New[T](),
		signal: make(chan struct{}, 1),
		out:    make(chan T),
		done:   make(chan struct{}),
	}
	go u.pump()
	return u
}

// Send enqueues v. It is a no-op once the channel is closed or detached.
func (u *Unbounded[T]) Send(v T) {
	u.Offer(v)
}

// Offer enqueues v and reports whether it was accepted.
func (u *Unbounded[T]) Offer(v T) bool {
	if u.closed.Load() || u.Detached() {
		u.dropped.Add(1)
		return false
	}
	u.items.Push(v)
	u.notify()
	return true
}

// Receive returns the delivery channel.
func (u *Unbounded[T]) Receive() <-chan T {
	return u.out
}

// Len returns the number of queued items not yet handed to the receiver.
func (u *Unbounded[T]) Len() int {
	return u.items.Len()
}

// Dropped returns how many sends were discarded.
func (u *Unbounded[T]) Dropped() uint64 {
	return u.dropped.Load()
}

// Close ends the stream; queued items are still delivered.
func (u *Unbounded[T]) Close() {
	u.closeOnce.Do(func() {
		u.closed.Store(true)
		u.notify()
	})
}

// Detach stops delivery and discards anything still queued.
func (u *Unbounded[T]) Detach() {
	u.detachOnce.Do(func() {
		close(u.done)
		u.items.Drain()
	})
}

// Detached reports whether the receiver has gone away.
func (u *Unbounded[T]) Detached() bool {
	select {
	case <-u.done:
		return true
	default:
		return false
	}
}

func (u *Unbounded[T]) notify() {
	select {
	case u.signal <- struct{}{}:
	default:
	}
}

func (u *Unbounded[T]) pump() {
	defer close(u.out)
	for {
		item, ok := u.items.TryPop()
		if !ok {
			if u.closed.Load() {
				// Close may have raced with the last Push
				if item, ok = u.items.TryPop(); !ok {
					return
				}
			} else {
				select {
				case <-u.signal:
					continue
				case <-u.done:
					return
				}
			}
		}
		select {
		case u.out <- item:
		case <-u.done:
			return
		}
	}
}
