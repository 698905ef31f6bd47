package task

import (
	"encoding/json"
	"testing"

	"crashsentry/common/format/report"
)

func TestFromJson_Report(t *testing.T) {
	r := &report.Report{Id: "abc", InstallationId: "inst", CrashType: "signal"}
	data, err := json.Marshal(CreateReportTask(r))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := FromJson(data).(*Report)
	if !ok {
		t.Fatalf("expected a report task")
	}
	if got.Id != "abc" || got.InstallationId != "inst" || got.Report == nil || got.Report.CrashType != "signal" {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestFromJson_FillsTime(t *testing.T) {
	got, ok := FromJson([]byte(`{"type":2,"id":"abc"}`)).(*Remove)
	if !ok || got.Id != "abc" || got.Time == "" {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestFromJson_Invalid(t *testing.T) {
	for _, data := range []string{`{"type":99}`, `not json`, `{"type":1,"id":5}`} {
		if v := FromJson([]byte(data)); v != nil {
			t.Fatalf("expected nil for %s, got %+v", data, v)
		}
	}
}
