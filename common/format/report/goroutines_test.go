package report

import (
	"runtime"
	"testing"
)

func TestParseGoroutines(t *testing.T) {
	threads := ParseGoroutines([]byte(sampleDump))
	if len(threads) != 2 {
		t.Fatalf("expected 2 goroutines, got %d", len(threads))
	}

	first := threads[0]
	if first.Id != 7 || first.State != "running" || first.FrameCount != 2 {
		t.Fatalf("unexpected first goroutine %+v", first)
	}
	top := first.Frames[0]
	if top.Function != "main.(*worker).run" || top.File != "/src/app/worker.go" || top.Line != 42 || top.Offset != "0x1d" {
		t.Fatalf("unexpected top frame %+v", top)
	}
	if first.Frames[1].Frame != 1 || first.Frames[1].Function != "main.main" {
		t.Fatalf("unexpected second frame %+v", first.Frames[1])
	}

	second := threads[1]
	if second.Id != 9 || second.State != "chan receive, 2 minutes" {
		t.Fatalf("unexpected second goroutine %+v", second)
	}
	if len(second.Frames) != 1 || second.Frames[0].Function != "main.wait" || second.Frames[0].Line != 5 {
		t.Fatalf("unexpected frames %+v", second.Frames)
	}
	if second.CreatedBy != "main.main" {
		t.Fatalf("unexpected creator %q", second.CreatedBy)
	}
}

func TestParseGoroutines_SkipsGarbage(t *testing.T) {
	if threads := ParseGoroutines([]byte("not a dump\n\nstill not")); len(threads) != 0 {
		t.Fatalf("expected nothing, got %+v", threads)
	}
}

func TestParseGoroutines_RuntimeDump(t *testing.T) {
	buf := make([]byte, 64<<10)
	n := runtime.Stack(buf, true)

	threads := ParseGoroutines(buf[:n])
	if len(threads) == 0 {
		t.Fatalf("expected goroutines from a live dump")
	}
	found := false
	for _, f := range threads[0].Frames {
		if f.Function == "crashsentry/common/format/report.TestParseGoroutines_RuntimeDump" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the test function in the current goroutine, got %+v", threads[0].Frames)
	}
}
