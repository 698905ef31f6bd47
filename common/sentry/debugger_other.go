//go:build !linux

package sentry

func BeingTraced() bool {
	return false
}
