//go:build !unix

package sentry

import (
	"os"
	"syscall"
)

type processDisposition struct{}

func (processDisposition) Reraise(sig syscall.Signal) {
	os.Exit(128 + int(sig))
}

func (processDisposition) Repanic(v interface{}) {
	panic(v)
}

func (processDisposition) Exit(code int) {
	os.Exit(code)
}
