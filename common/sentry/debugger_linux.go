//go:build linux

package sentry

import (
	"bufio"
	"os"
	"strings"
)

// BeingTraced reports whether a tracer (debugger, strace) is attached.
func BeingTraced() bool {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "TracerPid:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "TracerPid:")) != "0"
		}
	}
	return false
}
