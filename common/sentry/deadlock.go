package sentry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
)

// MainThread is the program's main loop as seen by the deadlock watchdog.
// Dispatch must not block; it returns false when fn could not be queued.
type MainThread interface {
	Dispatch(fn func()) bool
	ThreadID() ThreadID
}

// MainLoop is a MainThread that runs queued functions on whichever
// goroutine calls Run.
type MainLoop struct {
	tasks chan func()
	id    atomic.Uint64
}

func NewMainLoop(backlog int) *MainLoop {
	if backlog <= 0 {
		backlog = 16
	}
	return &MainLoop{tasks: make(chan func(), backlog)}
}

func (l *MainLoop) Dispatch(fn func()) bool {
	select {
	case l.tasks <- fn:
		return true
	default:
		return false
	}
}

func (l *MainLoop) ThreadID() ThreadID {
	return ThreadID(l.id.Load())
}

// Run executes queued functions until ctx is done.
func (l *MainLoop) Run(ctx context.Context) {
	l.id.Store(uint64(CurrentThread()))
	for {
		select {
		case fn := <-l.tasks:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// deadlockSentry probes the main thread every interval. A probe still
// unanswered at the next tick is a stall; each stall is reported once and
// the main thread has to answer before another one can be reported.
type deadlockSentry struct {
	machine
	session  *Session
	main     MainThread
	interval time.Duration

	awaiting   atomic.Bool
	reported   atomic.Bool
	probeStart atomic.Int64
	watchdog   atomic.Uint64

	cancel context.CancelFunc
}

func (ds *deadlockSentry) install() error {
	if ds.cancel != nil {
		return nil
	}
	if ds.main == nil {
		return errors.New("no main thread to watch")
	}

	ds.awaiting.Store(false)
	ds.reported.Store(false)

	ctx, cancel := context.WithCancel(context.Background())
	ds.cancel = cancel
	started := make(chan struct{})
	go ds.run(ctx, started)
	<-started

	log.WithField("interval", ds.interval).Debug("Deadlock watchdog started")
	return nil
}

func (ds *deadlockSentry) uninstall() {
	if ds.cancel == nil {
		return
	}
	ds.cancel()
	ds.cancel = nil
	ds.watchdog.Store(0)
}

func (ds *deadlockSentry) watchdogThread() ThreadID {
	return ThreadID(ds.watchdog.Load())
}

func (ds *deadlockSentry) run(ctx context.Context, started chan<- struct{}) {
	ds.watchdog.Store(uint64(CurrentThread()))
	close(started)

	ticker := time.NewTicker(ds.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ds.check()
		case <-ctx.Done():
			return
		}
	}
}

func (ds *deadlockSentry) check() {
	if ds.awaiting.Load() {
		if ds.reported.Load() || ds.session.Handling() {
			return
		}
		stalled := time.Since(time.Unix(0, ds.probeStart.Load()))
		ds.report(stalled)
		return
	}

	ds.reported.Store(false)
	ds.awaiting.Store(true)
	ds.probeStart.Store(time.Now().UnixNano())
	if !ds.main.Dispatch(ds.answer) {
		log.Debug("Main thread queue is full")
	}
}

func (ds *deadlockSentry) answer() {
	ds.awaiting.Store(false)
}

func (ds *deadlockSentry) report(stalled time.Duration) {
	s := ds.session
	if !s.begin(&ds.machine, CrashTypeMainThreadDeadlock) {
		return
	}
	ds.reported.Store(true)

	mainID := ds.main.ThreadID()
	s.ctx.Deadlock = DeadlockInfo{Stalled: stalled, MainThread: mainID}
	log.WithFields(log.Fields{
		"stalled": stalled,
		"thread":  mainID,
	}).Error("Main thread deadlock detected")

	s.snapshot(true, true)
	if stack := threadStack(s.ctx.Threads, mainID); stack != nil {
		s.ctx.Stack = stack
	}
	s.dispatch()

	s.resume(&ds.machine)
}
