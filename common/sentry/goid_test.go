package sentry

import (
	"fmt"
	"runtime"
	"testing"
)

func TestParseThreadID(t *testing.T) {
	cases := []struct {
		in   string
		want ThreadID
	}{
		{"goroutine 18 [running]:\nmain.main()", 18},
		{"goroutine 1 [chan receive, 3 minutes]:", 1},
		{"goroutine x [running]:", 0},
		{"panic: boom", 0},
		{"goroutine 7", 0},
	}
	for _, c := range cases {
		if got := parseThreadID([]byte(c.in)); got != c.want {
			t.Fatalf("%q: expected %d, got %d", c.in, c.want, got)
		}
	}
}

func TestCurrentThread_DiffersAcrossGoroutines(t *testing.T) {
	self := CurrentThread()
	if self == 0 {
		t.Fatalf("expected non-zero id")
	}

	other := make(chan ThreadID)
	go func() { other <- CurrentThread() }()
	if id := <-other; id == self || id == 0 {
		t.Fatalf("expected a different id, got %d and %d", self, id)
	}
}

func TestThreadStack_FindsGoroutine(t *testing.T) {
	release := make(chan struct{})
	ids := make(chan ThreadID)
	go func() {
		ids <- CurrentThread()
		<-release
	}()
	id := <-ids
	defer close(release)

	buf := make([]byte, 1<<20)
	dump := buf[:runtime.Stack(buf, true)]

	block := threadStack(dump, id)
	prefix := fmt.Sprintf("goroutine %d ", id)
	if len(block) < len(prefix) || string(block[:len(prefix)]) != prefix {
		t.Fatalf("expected block for goroutine %d, got %q", id, block)
	}
	if threadStack(dump, ThreadID(1<<60)) != nil {
		t.Fatalf("expected nil for unknown goroutine")
	}
}
