package sentry

import (
	"testing"

	"github.com/go-errors/errors"
)

type fakeTable struct {
	installs   map[CrashType]int
	uninstalls map[CrashType]int
	failing    CrashType
	order      []CrashType
}

func newFakeTable(s *Session, failing CrashType) *fakeTable {
	ft := &fakeTable{
		installs:   map[CrashType]int{},
		uninstalls: map[CrashType]int{},
		failing:    failing,
	}

	var entries []entry
	for _, e := range s.table() {
		t := e.crashType
		entries = append(entries, entry{
			crashType: t,
			install: func() error {
				ft.installs[t]++
				ft.order = append(ft.order, t)
				if ft.failing.Has(t) {
					return errors.New("slot taken")
				}
				return nil
			},
			uninstall: func() { ft.uninstalls[t]++ },
		})
	}
	s.sentries = entries
	return ft
}

func TestInstall_ReturnsSubsetOfRequested(t *testing.T) {
	for requested := CrashType(0); requested <= CrashTypeAll; requested++ {
		for _, failing := range []CrashType{0, CrashTypeSignal, CrashTypeMachException | CrashTypeUserReported} {
			s, _ := newTestSession(Options{})
			newFakeTable(s, failing)

			installed := s.Install(requested, nil)

			if installed&^requested != 0 {
				t.Fatalf("requested %s, installed %s", requested, installed)
			}
			if want := requested &^ failing; installed != want {
				t.Fatalf("requested %s with %s failing: expected %s, got %s", requested, failing, want, installed)
			}
		}
	}
}

func TestInstall_DebuggerKeepsOnlyUserReported(t *testing.T) {
	s, _ := newTestSession(Options{IsBeingTraced: func() bool { return true }})
	ft := newFakeTable(s, 0)

	installed := s.Install(CrashTypeAll, nil)

	if installed != CrashTypeUserReported {
		t.Fatalf("expected only user reported, got %s", installed)
	}
	for ct, n := range ft.installs {
		if ct != CrashTypeUserReported && n != 0 {
			t.Fatalf("%s installed under a debugger", ct)
		}
	}

	s2, _ := newTestSession(Options{IsBeingTraced: func() bool { return true }})
	newFakeTable(s2, 0)
	if got := s2.Install(CrashTypeSignal, nil); got != 0 {
		t.Fatalf("expected nothing installed, got %s", got)
	}
}

func TestInstall_DebuggerAllowedByConfiguration(t *testing.T) {
	s, _ := newTestSession(Options{
		IsBeingTraced:                func() bool { return true },
		ReportWhenDebuggerIsAttached: true,
	})
	newFakeTable(s, 0)

	if got := s.Install(CrashTypeSignal|CrashTypeUserReported, nil); got != CrashTypeSignal|CrashTypeUserReported {
		t.Fatalf("expected every requested type, got %s", got)
	}
}

func TestInstall_TableOrder(t *testing.T) {
	s, _ := newTestSession(Options{})
	ft := newFakeTable(s, 0)

	s.Install(CrashTypeSignal|CrashTypeMachException, nil)

	if len(ft.order) != 2 || ft.order[0] != CrashTypeMachException || ft.order[1] != CrashTypeSignal {
		t.Fatalf("expected mach exception before signal, got %v", ft.order)
	}
}

func TestInstall_ResetsContextAndSetsCallback(t *testing.T) {
	s, _ := newTestSession(Options{ThreadTracingEnabled: true})
	newFakeTable(s, 0)
	s.ctx.FaultAddress = 99
	s.ctx.CrashType = CrashTypeSignal

	s.Install(CrashTypeUserReported, func(*Context) {})

	ctx := s.Context()
	if ctx.FaultAddress != 0 || ctx.CrashType != 0 {
		t.Fatalf("expected context reset on install")
	}
	if ctx.OnCrash == nil || !ctx.ThreadTracingEnabled {
		t.Fatalf("expected callback and session flags set")
	}
}

func TestUninstall_NeverInstalledIsNoop(t *testing.T) {
	s, _ := newTestSession(Options{})
	ft := newFakeTable(s, 0)

	s.Uninstall(CrashTypeAll)

	if len(ft.uninstalls) != 0 {
		t.Fatalf("expected no uninstall calls, got %v", ft.uninstalls)
	}

	s.Install(CrashTypeSignal, nil)
	s.Uninstall(CrashTypeUserReported)
	if len(ft.uninstalls) != 0 {
		t.Fatalf("expected no uninstall calls, got %v", ft.uninstalls)
	}

	s.Uninstall(CrashTypeAll)
	if ft.uninstalls[CrashTypeSignal] != 1 || len(ft.uninstalls) != 1 {
		t.Fatalf("expected signal uninstalled once, got %v", ft.uninstalls)
	}
	if s.Installed() != 0 {
		t.Fatalf("expected nothing installed, got %s", s.Installed())
	}
}

func TestUninstall_AlwaysOnEntry(t *testing.T) {
	s, _ := newTestSession(Options{})
	uninstalled := 0
	s.sentries = []entry{
		{crashType: CrashTypeUserReported, uninstall: func() { uninstalled++ }},
	}

	if got := s.Install(CrashTypeUserReported, nil); got != CrashTypeUserReported {
		t.Fatalf("nil install should count as installed, got %s", got)
	}
	s.Uninstall(CrashTypeAll)
	if uninstalled != 0 {
		t.Fatalf("always-on entry must not be uninstalled")
	}
}

func TestInstall_RealSentries(t *testing.T) {
	s, _ := newTestSession(Options{})
	defer s.Close()

	installed := s.Install(CrashTypeLanguageException|CrashTypeUserReported|CrashTypeMainThreadDeadlock, nil)

	// No main thread configured, so the watchdog refuses to start.
	if installed != CrashTypeLanguageException|CrashTypeUserReported {
		t.Fatalf("unexpected installed set %s", installed)
	}
}

func TestInstall_DuringCaptureKeepsContext(t *testing.T) {
	s, _ := newTestSession(Options{})
	defer s.Close()

	var reason string
	var handling bool
	var next []string
	s.Install(CrashTypeUserReported, func(ctx *Context) {
		s.Install(CrashTypeUserReported, func(ctx *Context) {
			next = append(next, ctx.User.Reason)
		})
		reason = ctx.User.Reason
		handling = ctx.HandlingCrash
	})

	s.ReportUserException(UserException{Reason: "first"})

	if reason != "first" || !handling {
		t.Fatalf("context reset under the running capture: reason=%q handling=%v", reason, handling)
	}
	if s.Context().User.Reason != "first" {
		t.Fatalf("expected the capture kept, got %q", s.Context().User.Reason)
	}

	s.ReportUserException(UserException{Reason: "second"})
	if len(next) != 1 || next[0] != "second" {
		t.Fatalf("expected the new callback on the next capture, got %v", next)
	}
}
