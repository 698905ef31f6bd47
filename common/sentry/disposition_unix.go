//go:build unix

package sentry

import (
	"os"
	"os/signal"
	"syscall"
	"time"
)

type processDisposition struct{}

func (processDisposition) Reraise(sig syscall.Signal) {
	signal.Reset(sig)
	syscall.Kill(syscall.Getpid(), sig)

	// Delivery is asynchronous; give it a moment before forcing the exit.
	time.Sleep(time.Second)
	os.Exit(128 + int(sig))
}

func (processDisposition) Repanic(v interface{}) {
	panic(v)
}

func (processDisposition) Exit(code int) {
	os.Exit(code)
}
