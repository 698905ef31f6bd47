package sentry

import "testing"

func TestCrashType_String(t *testing.T) {
	cases := []struct {
		in   CrashType
		want string
	}{
		{0, "none"},
		{CrashTypeSignal, "signal"},
		{CrashTypeSignal | CrashTypeUserReported, "signal|user_reported"},
		{CrashTypeAsyncSafe, "mach_exception|signal"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Fatalf("%d: expected %q, got %q", c.in, c.want, got)
		}
	}
}

func TestParseCrashTypes(t *testing.T) {
	got, err := ParseCrashTypes([]string{"signal", " User_Reported ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != CrashTypeSignal|CrashTypeUserReported {
		t.Fatalf("unexpected mask %s", got)
	}

	got, err = ParseCrashTypes([]string{"production_safe"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Has(CrashTypeMainThreadDeadlock) || !got.Has(CrashTypeSignal) {
		t.Fatalf("unexpected production mask %s", got)
	}

	if _, err := ParseCrashTypes([]string{"nsexception"}); err == nil {
		t.Fatalf("expected error for unknown name")
	}
}

func TestCrashType_CompositeMasks(t *testing.T) {
	if CrashTypeDebuggerSafe.Has(CrashTypeMachException) || CrashTypeDebuggerSafe.Has(CrashTypeLanguageException) {
		t.Fatalf("debugger safe mask contains unsafe types: %s", CrashTypeDebuggerSafe)
	}
	if CrashTypeAll&^CrashTypeProductionSafe != CrashTypeExperimental {
		t.Fatalf("production safe should only exclude experimental types")
	}
	if CrashTypeUserReported.fatal() || CrashTypeMainThreadDeadlock.fatal() {
		t.Fatalf("user reports and deadlocks are not fatal")
	}
	if !CrashTypeSignal.fatal() {
		t.Fatalf("signals are fatal")
	}
}
