package report

import (
	"bytes"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/go-errors/errors"

	"crashsentry/common/sentry"
)

type stopStage struct{ signature string }

func (s *stopStage) Process(r *Report) bool {
	r.Signature = s.signature
	return true
}

type neverStage struct{ called bool }

func (s *neverStage) Process(r *Report) bool {
	s.called = true
	return false
}

func signalContext() *sentry.Context {
	return &sentry.Context{
		HandlingCrash:    true,
		CrashType:        sentry.CrashTypeSignal,
		CrashedThread:    7,
		CrashTime:        time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		ThreadsSuspended: true,
		FaultAddress:     0xdead,
		Signal:           sentry.SignalInfo{Number: syscall.SIGSEGV, Name: "SIGSEGV"},
		Stack:            []byte(strings.SplitN(sampleDump, "\n\n", 2)[0]),
		Threads:          []byte(sampleDump),
	}
}

func TestWriter_BuildSignal(t *testing.T) {
	w := NewWriter(&memorySaver{}, WriterOptions{InstallationId: "install", Version: "1.2.3"})
	r := w.Build(signalContext())

	if r.Id == "" || r.InstallationId != "install" || r.Version != "1.2.3" {
		t.Fatalf("unexpected identity %+v", r)
	}
	if r.CrashType != "signal" || !r.Fatal || r.ExceptionName != "SIGSEGV" || r.Reason != "SIGSEGV" {
		t.Fatalf("unexpected crash description %+v", r)
	}
	if r.CrashInfo.Address != "0xdead" || r.CrashInfo.Thread != 7 || r.CrashInfo.Signal != "SIGSEGV" {
		t.Fatalf("unexpected crash info %+v", r.CrashInfo)
	}
	if r.CrashingThread.ThreadId != 7 || r.CrashingThread.TotalFrames != 2 {
		t.Fatalf("unexpected crashing thread %+v", r.CrashingThread)
	}
	if r.ThreadCount != 2 || !r.Suspended {
		t.Fatalf("expected thread list and suspension flag")
	}
	if !r.DateAdded.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date %v", r.DateAdded)
	}
	if len(r.Modules) != len(Modules()) {
		t.Fatalf("fatal reports carry the module list")
	}
}

func TestWriter_UserReportedModulesGated(t *testing.T) {
	w := NewWriter(&memorySaver{}, WriterOptions{})
	ctx := &sentry.Context{
		CrashType: sentry.CrashTypeUserReported,
		User:      sentry.UserException{Name: "Manual", Reason: "manual-test", StackTrace: []string{"a", "b"}},
	}

	r := w.Build(ctx)
	if r.Fatal || r.ExceptionName != "Manual" || r.Reason != "manual-test" {
		t.Fatalf("unexpected user report %+v", r)
	}
	if r.User == nil || len(r.User.StackTrace) != 2 {
		t.Fatalf("expected user info")
	}
	if r.Modules != nil {
		t.Fatalf("user reports skip modules unless configured")
	}

	ctx.WriteBinaryImagesForUserReported = true
	if r := w.Build(ctx); len(r.Modules) != len(Modules()) {
		t.Fatalf("expected modules when configured")
	}
}

func TestWriter_OnCrashRunsStagesAndSaves(t *testing.T) {
	saver := &memorySaver{}
	never := &neverStage{}
	var trace bytes.Buffer
	w := NewWriter(saver, WriterOptions{
		Stages:      []Stage{&stopStage{"sig"}, never},
		PrintTrace:  true,
		TraceOutput: &trace,
	})

	w.OnCrash(signalContext())

	if len(saver.saved) != 1 {
		t.Fatalf("expected one saved report, got %d", len(saver.saved))
	}
	if saver.saved[0].Signature != "sig" || never.called {
		t.Fatalf("pipeline must stop at the first stage returning true")
	}
	if w.LastId() != saver.saved[0].Id {
		t.Fatalf("unexpected last id %q", w.LastId())
	}
	if !strings.HasPrefix(trace.String(), "signal: SIGSEGV") {
		t.Fatalf("unexpected trace output %q", trace.String())
	}
}

func TestWriter_SaveFailureKeepsLastId(t *testing.T) {
	w := NewWriter(&memorySaver{err: errors.New("disk full")}, WriterOptions{})
	ctx := signalContext()
	w.OnCrash(ctx)
	if w.LastId() != "" || ctx.ReportID != "" {
		t.Fatalf("failed save must not produce an id")
	}
}

func TestWriter_FromSession(t *testing.T) {
	saver := &memorySaver{}
	w := NewWriter(saver, WriterOptions{})
	s := sentry.NewSession(sentry.Options{IsBeingTraced: func() bool { return false }})
	s.Install(sentry.CrashTypeUserReported, w.OnCrash)
	defer s.Close()

	id, err := s.ReportUserException(sentry.UserException{Reason: "from session", LogAllThreads: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("expected a saved report")
	}
	r := saver.saved[0]
	if id != r.Id {
		t.Fatalf("expected the saved id %q, got %q", r.Id, id)
	}
	if r.Reason != "from session" || r.ThreadCount == 0 || len(r.CrashingThread.Frames) == 0 {
		t.Fatalf("unexpected report %+v", r)
	}
}

func TestFromPanicOutput(t *testing.T) {
	output := "panic: something went wrong\n\ngoroutine 1 [running]:\nmain.main()\n\t/src/app/main.go:10 +0x25\n"

	r := FromPanicOutput(output, "install")
	if r.CrashType != "language_exception" || !r.Fatal || r.InstallationId != "install" {
		t.Fatalf("unexpected report %+v", r)
	}
	if !strings.Contains(r.Reason, "something went wrong") {
		t.Fatalf("unexpected reason %q", r.Reason)
	}
	if r.CrashingThread.ThreadId != 1 || len(r.CrashingThread.Frames) != 1 || r.CrashingThread.Frames[0].Line != 10 {
		t.Fatalf("unexpected crashing thread %+v", r.CrashingThread)
	}
	if r.RawStack != output {
		t.Fatalf("expected raw output kept")
	}
}
