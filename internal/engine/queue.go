package engine

import "sync"

// readyQueue is the worker pool's bounded concurrency gate: a counting
// semaphore implemented with a buffered channel. Acquire/Release bracket
// the one piece of actual recipe work a goroutine performs; recursive
// Execute calls made via direct function return (not a new goroutine) do
// not re-acquire, so nested dependency chains cannot deadlock against
// their own ancestor holding a slot — only Run's root fan-out spawns new
// goroutines that contend for slots; target.ExecuteAll runs prerequisites
// one after another.
type readyQueue struct {
	mu   sync.Mutex
	sema chan struct{}
}

// newReadyQueue returns a queue bounding concurrent recipe execution to
// size simultaneous slots. size <= 0 means unbounded.
func newReadyQueue(size int) *readyQueue {
	if size <= 0 {
		return &readyQueue{}
	}
	return &readyQueue{sema: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free, then takes it.
func (q *readyQueue) Acquire() {
	if q.sema == nil {
		return
	}
	q.sema <- struct{}{}
}

// Release frees a previously acquired slot. There is no payload to nil
// out on release since a semaphore channel carries empty structs only.
func (q *readyQueue) Release() {
	if q.sema == nil {
		return
	}
	<-q.sema
}
