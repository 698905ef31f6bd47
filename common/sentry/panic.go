package sentry

import (
	"fmt"
	"runtime/debug"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// Recover captures a panic on the calling goroutine. It must be deferred
// directly:
//
//	defer session.Recover()
//
// Memory faults go to the hardware fault sentry, everything else to the
// language exception sentry. A captured panic ends the process with exit
// status 2. With neither installed the panic continues.
func (s *Session) Recover() {
	if r := recover(); r != nil {
		s.handlePanic(r)
	}
}

// Guard runs fn on the calling goroutine with memory faults turned into
// panics and every panic captured.
func (s *Session) Guard(fn func()) {
	defer s.Recover()

	prev := debug.SetPanicOnFault(s.fault.enabled.Load())
	defer debug.SetPanicOnFault(prev)

	fn()
}

// Go runs fn on a new goroutine under Guard.
func (s *Session) Go(fn func()) {
	go s.Guard(fn)
}

func (s *Session) handlePanic(r interface{}) {
	if addr, ok := faultAddress(r); ok && s.fault.enabled.Load() {
		s.fault.handle(r, addr)
		return
	}
	if s.language.enabled.Load() {
		s.language.handle(r)
		return
	}
	s.disposition.Repanic(r)
}

// faultAddress extracts the faulting address from a runtime error raised
// under SetPanicOnFault.
func faultAddress(r interface{}) (uintptr, bool) {
	if f, ok := r.(interface{ Addr() uintptr }); ok {
		return f.Addr(), true
	}
	return 0, false
}

func panicException(r interface{}) ExceptionInfo {
	if err, ok := r.(error); ok {
		return ExceptionInfo{Name: fmt.Sprintf("%T", r), Reason: err.Error()}
	}
	return ExceptionInfo{Name: fmt.Sprintf("%T", r), Reason: fmt.Sprint(r)}
}

type languageSentry struct {
	machine
	session *Session
	enabled atomic.Bool
}

func (ls *languageSentry) install() error {
	ls.enabled.Store(true)
	return nil
}

func (ls *languageSentry) uninstall() {
	ls.enabled.Store(false)
}

func (ls *languageSentry) handle(r interface{}) {
	s := ls.session
	if !s.begin(&ls.machine, CrashTypeLanguageException) {
		s.disposition.Repanic(r)
		return
	}

	s.ctx.Exception = panicException(r)
	log.WithFields(log.Fields{
		"name":   s.ctx.Exception.Name,
		"reason": s.ctx.Exception.Reason,
	}).Error("Uncaught panic")

	s.snapshot(true, false)
	s.dispatch()

	s.terminate(&ls.machine)
	s.exitPanic(r)
}
