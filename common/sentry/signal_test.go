//go:build unix

package sentry

import (
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestSignal_CaptureAndReraise(t *testing.T) {
	susp := &countingSuspender{}
	s, d := newTestSession(Options{Suspender: susp})

	var captured Context
	s.Install(CrashTypeUserReported, func(ctx *Context) { captured = *ctx })

	s.signal.handle(syscall.SIGSEGV)

	if captured.CrashType != CrashTypeSignal || captured.Signal.Name != "SIGSEGV" {
		t.Fatalf("unexpected capture %+v", captured.Signal)
	}
	if len(captured.Threads) == 0 {
		t.Fatalf("expected every goroutine captured")
	}
	if !captured.ThreadsSuspended {
		t.Fatalf("expected threads suspended during capture")
	}
	if d.reraiseCount() != 1 || d.reraised[0] != syscall.SIGSEGV {
		t.Fatalf("expected signal re-raised, got %v", d.reraised)
	}
	if s.State(CrashTypeSignal) != StateTerminating {
		t.Fatalf("expected terminating, got %s", s.State(CrashTypeSignal))
	}
	if susp.reserved == nil || susp.reserved[0] != captured.CrashedThread {
		t.Fatalf("expected the handler thread reserved, got %v", susp.reserved)
	}
}

func TestSignal_OverlappingFaults(t *testing.T) {
	s, d := newTestSession(Options{})

	fellThrough := make(chan struct{})
	d.onReraise = func(sig syscall.Signal) {
		if sig == syscall.SIGBUS {
			close(fellThrough)
		}
	}

	var mu sync.Mutex
	var captures []syscall.Signal
	s.Install(CrashTypeUserReported, func(ctx *Context) {
		mu.Lock()
		captures = append(captures, ctx.Signal.Number)
		mu.Unlock()

		select {
		case <-fellThrough:
		case <-time.After(5 * time.Second):
			t.Errorf("second fault never fell through")
		}
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.signal.handle(syscall.SIGSEGV)
	}()
	go func() {
		defer wg.Done()
		// Wait until the first capture owns the context.
		for !s.Handling() {
			time.Sleep(time.Millisecond)
		}
		s.signal.handle(syscall.SIGBUS)
	}()
	wg.Wait()

	if len(captures) != 1 || captures[0] != syscall.SIGSEGV {
		t.Fatalf("expected exactly one capture of SIGSEGV, got %v", captures)
	}
	if d.reraiseCount() != 2 {
		t.Fatalf("expected fall-through and final re-raise, got %v", d.reraised)
	}
	if s.Context().Signal.Number != syscall.SIGSEGV {
		t.Fatalf("second fault overwrote the context")
	}
}

func TestSignal_InstallUninstall(t *testing.T) {
	s, _ := newTestSession(Options{Signals: []syscall.Signal{syscall.SIGTRAP}})

	if got := s.Install(CrashTypeSignal, func(*Context) {}); got != CrashTypeSignal {
		t.Fatalf("expected signal sentry installed, got %s", got)
	}
	if s.signal.ch == nil {
		t.Fatalf("expected notify channel")
	}
	if got := s.Install(CrashTypeSignal, func(*Context) {}); got != CrashTypeSignal {
		t.Fatalf("expected reinstall to succeed, got %s", got)
	}

	s.Uninstall(CrashTypeSignal)
	if s.signal.ch != nil {
		t.Fatalf("expected notify channel released")
	}
}
