// Package sentry installs crash handlers ("sentries") and captures a frozen
// snapshot of program state into a shared Context when one of them fires.
//
// A Session owns the Context and the sentry table. Every sentry runs the same
// pipeline: claim the context, record what triggered it, suspend the other
// workers, capture goroutine stacks, hand the Context to the crash callback,
// then either terminate the process (faults) or resume and carry on (user
// reports and deadlock notifications). Only one capture runs at a time; a
// trigger that finds a capture in flight falls through to the default
// disposition instead.
package sentry

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultStackBufferSize  = 64 << 10
	DefaultDeadlockInterval = 5 * time.Second
)

var (
	ErrNotInstalled    = errors.New("sentry is not installed")
	ErrCrashInProgress = errors.New("another crash is being handled")
)

// Disposition is what happens to the process when a capture is fatal or a
// second crash arrives while the first is still being handled.
type Disposition interface {
	// Reraise delivers sig again with its default handler restored.
	Reraise(sig syscall.Signal)
	// Repanic continues an intercepted panic that was not captured.
	Repanic(v interface{})
	Exit(code int)
}

type Options struct {
	ThreadTracingEnabled             bool
	ReportWhenDebuggerIsAttached     bool
	SuspendThreadsForUserReported    bool
	WriteBinaryImagesForUserReported bool

	// ReservedThreads are never suspended, in addition to the handler's own
	// goroutine and the deadlock watchdog.
	ReservedThreads []ThreadID

	Suspender     Suspender
	Disposition   Disposition
	IsBeingTraced func() bool

	Signals          []syscall.Signal
	MainThread       MainThread
	DeadlockInterval time.Duration
	StackBufferSize  int

	// PanicOutput receives the panic message of a captured fatal panic before
	// the process exits. Defaults to os.Stderr.
	PanicOutput io.Writer
}

// Session is one monitoring session: it owns the crash context, the
// preallocated capture buffers and the sentry table.
type Session struct {
	mu  sync.Mutex
	ctx Context

	threads       *ThreadController
	disposition   Disposition
	isBeingTraced func() bool
	reserved      []ThreadID
	panicOutput   io.Writer

	inFlight       atomic.Bool
	installed      atomic.Uint32
	pendingOnCrash atomic.Pointer[OnCrashFunc]

	stackBuf  []byte
	threadBuf []byte

	signal   *signalSentry
	fault    *faultSentry
	foreign  *foreignSentry
	language *languageSentry
	deadlock *deadlockSentry
	user     *userSentry

	sentries []entry
}

func NewSession(opts Options) *Session {
	if opts.StackBufferSize <= 0 {
		opts.StackBufferSize = DefaultStackBufferSize
	}
	if opts.DeadlockInterval <= 0 {
		opts.DeadlockInterval = DefaultDeadlockInterval
	}
	if opts.Disposition == nil {
		opts.Disposition = processDisposition{}
	}
	if opts.IsBeingTraced == nil {
		opts.IsBeingTraced = BeingTraced
	}
	if len(opts.Signals) == 0 {
		opts.Signals = FatalSignals
	}
	if opts.PanicOutput == nil {
		opts.PanicOutput = os.Stderr
	}

	s := &Session{
		threads:       NewThreadController(opts.Suspender),
		disposition:   opts.Disposition,
		isBeingTraced: opts.IsBeingTraced,
		reserved:      append([]ThreadID(nil), opts.ReservedThreads...),
		panicOutput:   opts.PanicOutput,
		stackBuf:      make([]byte, opts.StackBufferSize),
		threadBuf:     make([]byte, opts.StackBufferSize*4),
	}

	s.ctx.ThreadTracingEnabled = opts.ThreadTracingEnabled
	s.ctx.ReportWhenDebuggerIsAttached = opts.ReportWhenDebuggerIsAttached
	s.ctx.SuspendThreadsForUserReported = opts.SuspendThreadsForUserReported
	s.ctx.WriteBinaryImagesForUserReported = opts.WriteBinaryImagesForUserReported

	s.signal = &signalSentry{session: s, signals: opts.Signals}
	s.fault = &faultSentry{session: s}
	s.foreign = &foreignSentry{session: s}
	s.language = &languageSentry{session: s}
	s.deadlock = &deadlockSentry{session: s, main: opts.MainThread, interval: opts.DeadlockInterval}
	s.user = &userSentry{session: s}
	s.sentries = s.table()

	return s
}

// Context returns the session's crash context. Callers must not write to it
// while a capture may be running.
func (s *Session) Context() *Context {
	return &s.ctx
}

func (s *Session) Threads() *ThreadController {
	return s.threads
}

func (s *Session) Installed() CrashType {
	return CrashType(s.installed.Load())
}

// Handling reports whether a capture is in flight.
func (s *Session) Handling() bool {
	return s.inFlight.Load()
}

// Close uninstalls every sentry. A capture already in flight is not
// interrupted.
func (s *Session) Close() {
	s.Uninstall(CrashTypeAll)
}

func (s *Session) reservedThreads() []ThreadID {
	ids := s.reserved
	if id := s.deadlock.watchdogThread(); id != 0 {
		ids = append(ids[:len(ids):len(ids)], id)
	}
	return ids
}

// begin claims the context for a new capture. It fails when another capture
// is already in flight, in which case the context is left untouched.
func (s *Session) begin(m *machine, t CrashType) bool {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.WithField("crash_type", t).
			Warning("Crash while handling a crash, not capturing")
		return false
	}
	m.transition(StateCapturing)

	if onCrash := s.pendingOnCrash.Swap(nil); onCrash != nil {
		s.ctx.OnCrash = *onCrash
	}
	BeginHandlingCrash(&s.ctx)
	s.ctx.CrashType = t
	s.ctx.CrashTime = time.Now()
	s.ctx.CrashedThread = CurrentThread()
	s.ctx.reserve(s.ctx.CrashedThread)
	for _, id := range s.reservedThreads() {
		s.ctx.reserve(id)
	}

	log.WithFields(log.Fields{
		"crash_type": t,
		"thread":     s.ctx.CrashedThread,
	}).Debug("Begin handling crash")
	return true
}

// snapshot suspends everything outside the reserved set and records the
// stacks. A failed suspend still captures what it can.
func (s *Session) snapshot(suspend, allThreads bool) {
	if suspend {
		if s.threads.SuspendAllExcept(s.ctx.Reserved()) {
			s.ctx.ThreadsSuspended = true
		} else {
			log.WithField("crash_type", s.ctx.CrashType).
				Warning("Capturing without suspended threads")
		}
	}

	n := runtime.Stack(s.stackBuf, false)
	s.ctx.Stack = s.stackBuf[:n]

	if allThreads || s.ctx.ThreadTracingEnabled {
		n = runtime.Stack(s.threadBuf, true)
		s.ctx.Threads = s.threadBuf[:n]
	}
}

func (s *Session) dispatch() {
	onCrash := s.ctx.OnCrash
	if onCrash == nil {
		log.WithField("crash_type", s.ctx.CrashType).
			Warning("No crash callback set")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("Crash callback panicked")
		}
	}()
	onCrash(&s.ctx)
}

// resume ends a non-fatal capture. The captured fields stay readable until
// the next capture begins.
func (s *Session) resume(m *machine) {
	if s.ctx.ThreadsSuspended {
		if s.threads.ResumeAllExcept(s.ctx.Reserved()) {
			s.ctx.ThreadsSuspended = false
		}
	}
	m.transition(StateResumedOk)
	s.ctx.HandlingCrash = false
	m.transition(StateIdle)
	s.inFlight.Store(false)
}

func (s *Session) terminate(m *machine) {
	m.transition(StateTerminating)
	log.WithField("crash_type", s.ctx.CrashType).
		Debug("Capture complete, terminating")
}

// exitPanic ends the process after a captured panic the way the runtime does
// for an unrecovered one. The panic is not continued, so a recover further up
// the stack cannot keep the process running.
func (s *Session) exitPanic(r interface{}) {
	fmt.Fprintf(s.panicOutput, "panic: %v\n\n%s\n", r, s.ctx.Stack)
	s.disposition.Exit(2)
}

// State returns the handler state of the sentry for a single crash type.
func (s *Session) State(t CrashType) HandlerState {
	if m := s.machineFor(t); m != nil {
		return m.State()
	}
	return StateIdle
}

func (s *Session) machineFor(t CrashType) *machine {
	switch t {
	case CrashTypeMachException:
		return &s.fault.machine
	case CrashTypeSignal:
		return &s.signal.machine
	case CrashTypeCPPException:
		return &s.foreign.machine
	case CrashTypeLanguageException:
		return &s.language.machine
	case CrashTypeMainThreadDeadlock:
		return &s.deadlock.machine
	case CrashTypeUserReported:
		return &s.user.machine
	}
	return nil
}
