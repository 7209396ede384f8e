package device

import (
	"sync"
	"sync/atomic"
)

// Stream is an in-order execution queue for device work. Launched tasks run
// asynchronously on a dedicated worker in issue order; Synchronize blocks
// until every task issued so far has completed.
//
// This mirrors the semantics of an accelerator stream: kernel launches
// return immediately, and any host-visible result forces a barrier.
type Stream struct {
	tasks    chan func()
	pending  sync.WaitGroup
	barriers atomic.Int64
}

func newStream() *Stream {
	s := &Stream{tasks: make(chan func(), 64)}
	go func() {
		for task := range s.tasks {
			task()
			s.pending.Done()
		}
	}()
	return s
}

// Launch queues work on the stream and returns without waiting for it.
func (s *Stream) Launch(task func()) {
	s.pending.Add(1)
	s.tasks <- task
}

// Synchronize blocks until all previously launched work has completed.
// Every call counts as one device barrier, whether or not work was pending.
func (s *Stream) Synchronize() {
	s.pending.Wait()
	s.barriers.Add(1)
}

// Barriers reports how many synchronization points this stream has seen.
// Useful in tests asserting that hot paths avoid device round-trips.
func (s *Stream) Barriers() int64 {
	return s.barriers.Load()
}
