package cpu

import (
	"fmt"
	"sync"

	"github.com/eapache/queue"

	"github.com/samcharles93/batchlu/internal/gpu"
)

type op func() error

// stream executes queued operations in FIFO order on one worker goroutine.
// The first failing operation poisons the stream: later operations are
// dropped and every Synchronize reports that error, matching the sticky
// asynchronous error model of a real device.
type stream struct {
	id    int
	owner *Backend

	mu     sync.Mutex
	cond   *sync.Cond
	ops    *queue.Queue
	busy   bool
	closed bool
	err    error
	done   chan struct{}
}

func newStream(id int, owner *Backend) *stream {
	s := &stream{
		id:    id,
		owner: owner,
		ops:   queue.New(),
		done:  make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

func (s *stream) enqueue(fn op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return gpu.ErrStreamDestroyed
	}
	s.ops.Add(fn)
	s.cond.Broadcast()
	return nil
}

func (s *stream) run() {
	defer close(s.done)

	s.mu.Lock()
	for {
		for s.ops.Length() == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.ops.Length() == 0 {
			s.mu.Unlock()
			return
		}
		fn := s.ops.Remove().(op)
		poisoned := s.err != nil
		s.busy = true
		s.mu.Unlock()

		var err error
		if !poisoned {
			err = execute(fn)
		}

		s.mu.Lock()
		s.busy = false
		if err != nil && s.err == nil {
			s.err = fmt.Errorf("stream %d: %w", s.id, err)
		}
		s.cond.Broadcast()
	}
}

func execute(fn op) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if recErr, ok := rec.(error); ok {
				err = fmt.Errorf("%w: %w", gpu.ErrKernelLaunch, recErr)
				return
			}
			err = fmt.Errorf("%w: %v", gpu.ErrKernelLaunch, rec)
		}
	}()
	return fn()
}

// Synchronize waits until the queue is drained and the worker is idle.
func (s *stream) Synchronize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.ops.Length() > 0 || s.busy {
		s.cond.Wait()
	}
	if s.closed {
		return gpu.ErrStreamDestroyed
	}
	return s.err
}

func (s *stream) Destroy() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	<-s.done
	if s.owner != nil {
		s.owner.forgetStream(s)
	}
	return nil
}

// pending reports the number of queued operations, including one in flight.
func (s *stream) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ops.Length()
	if s.busy {
		n++
	}
	return n
}
