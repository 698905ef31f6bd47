package pipeline

import (
	"testing"

	"crashsentry/common/format/report"
)

func crashed(functions ...string) *report.Report {
	r := &report.Report{}
	for i, f := range functions {
		r.CrashingThread.Frames = append(r.CrashingThread.Frames, report.ThreadFrame{
			Frame:    uint(i),
			Function: f,
			File:     "/src/" + f + ".go",
			Line:     uint(10 + i),
		})
	}
	return r
}

func TestDefault_SkipsRuntimeFrames(t *testing.T) {
	r := crashed(
		"runtime/debug.Stack",
		"crashsentry/common/sentry.(*Session).snapshot",
		"panic",
		"main.handler",
		"main.main",
	)

	report.Process(r, Default(nil))

	if r.Signature != "main.handler" || r.Source != "/src/main.handler.go:13" {
		t.Fatalf("unexpected signature %q at %q", r.Signature, r.Source)
	}
}

func TestDefault_AllFramesSkipped(t *testing.T) {
	r := crashed("runtime.gopark", "runtime.goexit")

	report.Process(r, Default(nil))

	if r.Signature != "runtime.gopark" {
		t.Fatalf("expected the top frame, got %q", r.Signature)
	}
}

func TestRx_NoFramesContinues(t *testing.T) {
	if NewRx([]string{"x"}).Process(&report.Report{}) {
		t.Fatalf("empty reports go to the next stage")
	}
}

func TestNewRx_DropsInvalid(t *testing.T) {
	rx := NewRx([]string{"(", `^ok$`})
	if len(rx.Regexps) != 1 {
		t.Fatalf("expected the invalid expression dropped, got %d", len(rx.Regexps))
	}
}
