package sentry

import (
	"sync/atomic"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// ReportUserException captures the current state on demand and returns the
// report id the crash callback stamped on the context, empty when it
// produced none. Unless e.Terminate is set the program keeps running
// afterwards.
func (s *Session) ReportUserException(e UserException) (string, error) {
	if !s.user.enabled.Load() {
		return "", ErrNotInstalled
	}
	return s.user.handle(e)
}

type userSentry struct {
	machine
	session *Session
	enabled atomic.Bool
}

func (us *userSentry) install() error {
	us.enabled.Store(true)
	return nil
}

func (us *userSentry) uninstall() {
	us.enabled.Store(false)
}

func (us *userSentry) handle(e UserException) (string, error) {
	s := us.session
	if !s.begin(&us.machine, CrashTypeUserReported) {
		return "", ErrCrashInProgress
	}

	s.ctx.User = e
	log.WithFields(log.Fields{
		"name":      e.Name,
		"reason":    e.Reason,
		"terminate": e.Terminate,
	}).Info("User reported exception")

	s.snapshot(s.ctx.SuspendThreadsForUserReported, e.LogAllThreads)
	s.dispatch()
	id := s.ctx.ReportID

	if e.Terminate {
		s.terminate(&us.machine)
		s.disposition.Reraise(syscall.SIGABRT)
		return id, nil
	}

	s.resume(&us.machine)
	return id, nil
}
