// Package queue provides an unbounded multi-producer single-consumer channel.
//
// Producers never block: Push appends to an internal buffer that a pump
// goroutine drains into the output channel as fast as the consumer reads.
package queue

import (
	"sync"
	"sync/atomic"
)

type Unbounded[T any] struct {
	mu     sync.Mutex
	buf    []T
	closed bool
	signal chan struct{}
	done   chan struct{}
	stop   sync.Once

	out chan T
	len atomic.Int64
}

func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
		out:    make(chan T),
	}
	go q.pump()

	return q
}

// Push enqueues v. It reports false if the queue has been closed.
func (q *Unbounded[T]) Push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.buf = append(q.buf, v)
	q.len.Add(1)
	q.mu.Unlock()

	q.notify()
	return true
}

// Out returns the consumer side. It is closed after Close once every
// buffered item has been delivered, or right after Stop.
func (q *Unbounded[T]) Out() <-chan T {
	return q.out
}

// Len is the number of items buffered and not yet received.
func (q *Unbounded[T]) Len() int {
	return int(q.len.Load())
}

func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.notify()
}

// Stop closes the queue and drops whatever is still buffered. Use it when
// nobody is left to read Out.
func (q *Unbounded[T]) Stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.stop.Do(func() { close(q.done) })
}

func (q *Unbounded[T]) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *Unbounded[T]) pump() {
	defer close(q.out)
	defer func() {
		select {
		case <-q.done:
			q.mu.Lock()
			q.buf = nil
			q.len.Store(0)
			q.mu.Unlock()
		default:
		}
	}()

	var batch []T
	for {
		q.mu.Lock()
		batch, q.buf = q.buf, batch[:0]
		closed := q.closed
		q.mu.Unlock()

		for i, v := range batch {
			select {
			case <-q.done:
				return
			default:
			}

			select {
			case q.out <- v:
			case <-q.done:
				return
			}
			q.len.Add(-1)

			var zero T
			batch[i] = zero
		}

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}

		select {
		case <-q.signal:
		case <-q.done:
			return
		}
	}
}
