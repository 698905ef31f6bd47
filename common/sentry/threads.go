package sentry

import (
	"sync"
	"sync/atomic"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
)

// Suspender freezes and thaws every thread it knows about except the
// reserved ones. An empty reserved set means every thread.
type Suspender interface {
	SuspendAllExcept(reserved []ThreadID) error
	ResumeAllExcept(reserved []ThreadID) error
}

// Pausable is a worker goroutine that can be parked on request.
type Pausable interface {
	ThreadID() ThreadID
	Pause() error
	Resume() error
}

// ThreadController tracks whether threads are currently suspended and keeps
// suspend/resume idempotent. The state is a single flag: two suspends in a
// row need only one resume. The flag is claimed before the Suspender is
// called, so concurrent callers never suspend twice.
type ThreadController struct {
	suspender Suspender
	suspended atomic.Bool
}

func NewThreadController(s Suspender) *ThreadController {
	return &ThreadController{suspender: s}
}

func (c *ThreadController) Running() bool {
	return !c.suspended.Load()
}

func (c *ThreadController) SuspendAllExcept(reserved []ThreadID) bool {
	if !c.suspended.CompareAndSwap(false, true) {
		log.Debug("Threads already suspended")
		return true
	}

	log.WithField("reserved", len(reserved)).
		Debug("Suspending all threads except reserved")

	if c.suspender != nil {
		if err := c.suspender.SuspendAllExcept(reserved); err != nil {
			log.WithError(err).Warning("Can't suspend threads")
			c.suspended.Store(false)
			return false
		}
	}
	return true
}

func (c *ThreadController) ResumeAllExcept(reserved []ThreadID) bool {
	if !c.suspended.CompareAndSwap(true, false) {
		log.Debug("Threads already resumed")
		return true
	}

	log.WithField("reserved", len(reserved)).
		Debug("Resuming all threads except reserved")

	if c.suspender != nil {
		if err := c.suspender.ResumeAllExcept(reserved); err != nil {
			log.WithError(err).Warning("Can't resume threads")
			c.suspended.Store(true)
			return false
		}
	}
	return true
}

// WorkerSet is a Suspender over registered Pausable workers. The handler
// path only loads an immutable snapshot of the list, it never locks.
type WorkerSet struct {
	mu      sync.Mutex
	workers atomic.Pointer[[]Pausable]
}

func (w *WorkerSet) Add(p Pausable) {
	w.mu.Lock()
	defer w.mu.Unlock()

	current := w.list()
	next := make([]Pausable, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, p)
	w.workers.Store(&next)
}

func (w *WorkerSet) Remove(p Pausable) {
	w.mu.Lock()
	defer w.mu.Unlock()

	current := w.list()
	next := make([]Pausable, 0, len(current))
	for _, c := range current {
		if c != p {
			next = append(next, c)
		}
	}
	w.workers.Store(&next)
}

func (w *WorkerSet) Len() int {
	return len(w.list())
}

func (w *WorkerSet) list() []Pausable {
	if l := w.workers.Load(); l != nil {
		return *l
	}
	return nil
}

// SuspendAllExcept pauses every unreserved worker. If one of them fails the
// workers paused so far are resumed, leaving the set as it was.
func (w *WorkerSet) SuspendAllExcept(reserved []ThreadID) error {
	list := w.list()
	for i, p := range list {
		if isReserved(reserved, p.ThreadID()) {
			continue
		}
		if err := p.Pause(); err != nil {
			w.rollback(list[:i], reserved)
			return errors.Wrap(err, 0)
		}
	}
	return nil
}

func (w *WorkerSet) rollback(paused []Pausable, reserved []ThreadID) {
	for _, p := range paused {
		if isReserved(reserved, p.ThreadID()) {
			continue
		}
		if err := p.Resume(); err != nil {
			log.WithError(err).
				WithField("thread", p.ThreadID()).
				Warning("Can't resume worker after a failed suspend")
		}
	}
}

func (w *WorkerSet) ResumeAllExcept(reserved []ThreadID) error {
	return w.each(reserved, Pausable.Resume)
}

func (w *WorkerSet) each(reserved []ThreadID, op func(Pausable) error) error {
	var failed error
	for _, p := range w.list() {
		if isReserved(reserved, p.ThreadID()) {
			continue
		}
		if err := op(p); err != nil && failed == nil {
			failed = errors.Wrap(err, 0)
		}
	}
	return failed
}

func isReserved(reserved []ThreadID, id ThreadID) bool {
	for _, r := range reserved {
		if r == id {
			return true
		}
	}
	return false
}

// Gate is a Pausable for a worker loop: the worker calls Bind once from its
// own goroutine and Checkpoint between units of work.
type Gate struct {
	id     atomic.Uint64
	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

func NewGate() *Gate {
	g := &Gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *Gate) Bind() {
	g.id.Store(uint64(CurrentThread()))
}

func (g *Gate) ThreadID() ThreadID {
	return ThreadID(g.id.Load())
}

func (g *Gate) Pause() error {
	g.mu.Lock()
	g.paused = true
	g.mu.Unlock()
	return nil
}

func (g *Gate) Resume() error {
	g.mu.Lock()
	g.paused = false
	g.mu.Unlock()
	g.cond.Broadcast()
	return nil
}

func (g *Gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Checkpoint blocks while the gate is paused.
func (g *Gate) Checkpoint() {
	g.mu.Lock()
	for g.paused {
		g.cond.Wait()
	}
	g.mu.Unlock()
}
