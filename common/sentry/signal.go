//go:build unix

package sentry

import (
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// FatalSignals are the signals the signal sentry watches by default.
// SIGPIPE is left out: once notified, every broken connection would raise it
// instead of returning EPIPE.
var FatalSignals = []syscall.Signal{
	syscall.SIGABRT,
	syscall.SIGBUS,
	syscall.SIGFPE,
	syscall.SIGILL,
	syscall.SIGSEGV,
	syscall.SIGSYS,
	syscall.SIGTRAP,
}

var signalNames = map[syscall.Signal]string{
	syscall.SIGABRT: "SIGABRT",
	syscall.SIGBUS:  "SIGBUS",
	syscall.SIGFPE:  "SIGFPE",
	syscall.SIGILL:  "SIGILL",
	syscall.SIGPIPE: "SIGPIPE",
	syscall.SIGSEGV: "SIGSEGV",
	syscall.SIGSYS:  "SIGSYS",
	syscall.SIGTRAP: "SIGTRAP",
}

func signalName(sig syscall.Signal) string {
	if name, ok := signalNames[sig]; ok {
		return name
	}
	return sig.String()
}

type signalSentry struct {
	machine
	session *Session
	signals []syscall.Signal
	ch      chan os.Signal
	done    chan struct{}
}

func (ss *signalSentry) install() error {
	if ss.ch != nil {
		return nil
	}

	sigs := make([]os.Signal, len(ss.signals))
	for i, sig := range ss.signals {
		sigs[i] = sig
	}

	ss.ch = make(chan os.Signal, len(sigs))
	ss.done = make(chan struct{})
	signal.Notify(ss.ch, sigs...)

	go ss.loop(ss.ch, ss.done)

	log.WithField("signals", len(sigs)).Debug("Signal sentry installed")
	return nil
}

func (ss *signalSentry) uninstall() {
	if ss.ch == nil {
		return
	}
	signal.Stop(ss.ch)
	close(ss.done)
	ss.ch = nil
	ss.done = nil
}

func (ss *signalSentry) loop(ch <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case sig := <-ch:
			if s, ok := sig.(syscall.Signal); ok {
				ss.handle(s)
			}
		case <-done:
			return
		}
	}
}

func (ss *signalSentry) handle(sig syscall.Signal) {
	s := ss.session
	if !s.begin(&ss.machine, CrashTypeSignal) {
		s.disposition.Reraise(sig)
		return
	}

	s.ctx.Signal = SignalInfo{
		Number: sig,
		Name:   signalName(sig),
	}

	log.WithField("signal", s.ctx.Signal.Name).Error("Caught fatal signal")

	// The handling goroutine is not the one that faulted, so every stack is
	// captured.
	s.snapshot(true, true)
	s.dispatch()

	s.terminate(&ss.machine)
	s.disposition.Reraise(sig)
}
