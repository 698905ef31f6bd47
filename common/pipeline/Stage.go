// Package pipeline contains report.Stage implementations run over every
// report before it is stored.
package pipeline

import (
	"fmt"

	"crashsentry/common/format/report"
)

// DefaultSkipFrames are the frames that never make a useful signature:
// the runtime's panic machinery and the capture code itself.
var DefaultSkipFrames = []string{
	`^runtime\.`,
	`^panic$`,
	`^crashsentry/common/sentry\.`,
	`^runtime/debug\.`,
}

type SignatureAndSource struct{}

func (m *SignatureAndSource) Process(r *report.Report) bool {
	if len(r.CrashingThread.Frames) > 0 {
		frame := &r.CrashingThread.Frames[0]
		r.Signature = frame.Function
		r.Source = source(frame)
	}

	return false
}

func source(frame *report.ThreadFrame) string {
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}

// Default returns the stages the agent runs: top frame first, then the
// first frame outside skip.
func Default(skip []string) []report.Stage {
	if len(skip) == 0 {
		skip = DefaultSkipFrames
	}
	return []report.Stage{
		&SignatureAndSource{},
		NewRx(skip),
	}
}
