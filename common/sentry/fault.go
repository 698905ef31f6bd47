package sentry

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// faultSentry covers hardware faults (bad memory access) that the runtime
// turns into panics for goroutines running under Session.Guard.
type faultSentry struct {
	machine
	session *Session
	enabled atomic.Bool
}

func (fs *faultSentry) install() error {
	fs.enabled.Store(true)
	return nil
}

func (fs *faultSentry) uninstall() {
	fs.enabled.Store(false)
}

func (fs *faultSentry) handle(r interface{}, addr uintptr) {
	s := fs.session
	if !s.begin(&fs.machine, CrashTypeMachException) {
		s.disposition.Repanic(r)
		return
	}

	s.ctx.FaultAddress = addr
	s.ctx.Exception = panicException(r)
	log.WithField("address", addr).Error("Caught memory fault")

	s.snapshot(true, false)
	s.dispatch()

	s.terminate(&fs.machine)
	s.exitPanic(r)
}
