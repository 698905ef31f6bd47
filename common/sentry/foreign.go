package sentry

import (
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// ReportForeignException records the termination of native C/C++ code
// linked into the process. It is the entry point for a std::terminate hook
// bridged in through cgo; registers is the raw machine context the hook
// captured, if any. The process is aborted once the capture completes.
func (s *Session) ReportForeignException(typeName, what string, registers []byte) error {
	if !s.foreign.enabled.Load() {
		return ErrNotInstalled
	}
	s.foreign.handle(typeName, what, registers)
	return nil
}

type foreignSentry struct {
	machine
	session *Session
	enabled atomic.Bool
}

func (fs *foreignSentry) install() error {
	fs.enabled.Store(true)
	return nil
}

func (fs *foreignSentry) uninstall() {
	fs.enabled.Store(false)
}

func (fs *foreignSentry) handle(typeName, what string, registers []byte) {
	s := fs.session
	if !s.begin(&fs.machine, CrashTypeCPPException) {
		s.disposition.Reraise(syscall.SIGABRT)
		return
	}

	s.ctx.Exception = ExceptionInfo{Name: typeName, Reason: what}
	s.ctx.setRegisterState(registers)
	log.WithFields(log.Fields{
		"name":   typeName,
		"reason": what,
	}).Error("Foreign exception terminated the program")

	s.snapshot(true, false)
	s.dispatch()

	s.terminate(&fs.machine)
	s.disposition.Reraise(syscall.SIGABRT)
}
