package sentry

import (
	log "github.com/sirupsen/logrus"
)

// entry binds a crash type to its install/uninstall pair. An entry without
// an install function is always on and is never uninstalled.
type entry struct {
	crashType CrashType
	install   func() error
	uninstall func()
}

// table lists the sentries in install order. Hardware faults come before
// signals so a fault is intercepted before it can surface as a signal.
func (s *Session) table() []entry {
	return []entry{
		{CrashTypeMachException, s.fault.install, s.fault.uninstall},
		{CrashTypeSignal, s.signal.install, s.signal.uninstall},
		{CrashTypeCPPException, s.foreign.install, s.foreign.uninstall},
		{CrashTypeLanguageException, s.language.install, s.language.uninstall},
		{CrashTypeMainThreadDeadlock, s.deadlock.install, s.deadlock.uninstall},
		{CrashTypeUserReported, s.user.install, s.user.uninstall},
	}
}

// Install installs the sentries for the requested types and returns the
// types that were actually installed. When a debugger is attached and the
// session is not configured to report under one, only user reports are
// kept.
func (s *Session) Install(types CrashType, onCrash OnCrashFunc) CrashType {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isBeingTraced() {
		if s.ctx.ReportWhenDebuggerIsAttached {
			log.Warning("Running in a debugger. Crash handling is enabled via configuration")
		} else {
			log.Warning("Running in a debugger. Only user reported events will be handled")
			types &= CrashTypeUserReported
		}
	}

	log.WithField("crash_types", types).Debug("Installing handlers")

	s.resetContext(onCrash)

	var installed CrashType
	for _, e := range s.sentries {
		if e.crashType&types == 0 {
			continue
		}

		if e.install != nil {
			if err := e.install(); err != nil {
				log.WithError(err).
					WithField("crash_type", e.crashType).
					Warning("Can't install sentry")
				continue
			}
		}
		installed |= e.crashType
	}

	s.installed.Store(uint32(s.Installed() | installed))
	log.WithField("installed", installed).Debug("Installation complete")
	return installed
}

// resetContext brings the context to its steady state with onCrash as the
// callback. While a capture owns the context the callback is parked and
// picked up by the next capture instead.
func (s *Session) resetContext(onCrash OnCrashFunc) {
	if !s.inFlight.CompareAndSwap(false, true) {
		log.Debug("Capture in flight, deferring context reset")
		s.pendingOnCrash.Store(&onCrash)
		return
	}
	s.pendingOnCrash.Store(nil)
	ClearContext(&s.ctx)
	s.ctx.OnCrash = onCrash
	s.inFlight.Store(false)
}

// Uninstall removes the sentries for the given types. Types that were never
// installed are skipped.
func (s *Session) Uninstall(types CrashType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.WithField("crash_types", types).Debug("Uninstalling handlers")

	current := s.Installed()
	for _, e := range s.sentries {
		if e.crashType&types == 0 || e.crashType&current == 0 {
			continue
		}
		if e.install == nil {
			continue
		}

		if e.uninstall != nil {
			e.uninstall()
		}
		current &^= e.crashType
	}

	s.installed.Store(uint32(current))
	log.Debug("Uninstall complete")
}
