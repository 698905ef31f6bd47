//go:build !unix

package sentry

import (
	"syscall"

	"github.com/go-errors/errors"
)

var FatalSignals = []syscall.Signal{}

var ErrSignalsUnavailable = errors.New("fatal signals are not supported on this platform")

type signalSentry struct {
	machine
	session *Session
	signals []syscall.Signal
}

func (ss *signalSentry) install() error {
	return ErrSignalsUnavailable
}

func (ss *signalSentry) uninstall() {}
