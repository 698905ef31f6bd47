package report

import (
	"fmt"
	"strings"
	"time"

	bugsnag "github.com/bugsnag/bugsnag-go/errors"
	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"crashsentry/common/sentry"
)

// FromPanicOutput builds a report from the stderr of a child process that
// died of an uncaught panic.
func FromPanicOutput(output, installationId string) *Report {
	r := &Report{
		Id:             uuid.NewV4().String(),
		InstallationId: installationId,
		CrashType:      sentry.CrashTypeLanguageException.String(),
		Fatal:          true,
		DateAdded:      time.Now().UTC(),
		RawStack:       output,
	}
	r.CrashInfo.Type = r.CrashType
	r.SystemInfo = SystemInfo()

	threads := ParseGoroutines([]byte(output))
	if len(threads) > 0 {
		r.Threads = threads
		r.ThreadCount = uint(len(threads))
		r.CrashingThread = CrashingThread{
			Frames:      threads[0].Frames,
			ThreadId:    threads[0].Id,
			TotalFrames: threads[0].FrameCount,
		}
		r.CrashInfo.Thread = threads[0].Id
	}

	parsed, err := bugsnag.ParsePanic(output)
	if err != nil {
		log.WithError(err).Warning("Can't parse panic output")
		r.Reason = firstLine(output)
		return r
	}

	r.ExceptionName = parsed.TypeName()
	r.Reason = parsed.Error()
	if len(r.CrashingThread.Frames) == 0 {
		for i, f := range parsed.StackFrames() {
			r.CrashingThread.Frames = append(r.CrashingThread.Frames, ThreadFrame{
				File:     f.File,
				Frame:    uint(i),
				Function: fmt.Sprintf("%s.%s", f.Package, f.Name),
				Line:     uint(f.LineNumber),
			})
		}
		r.CrashingThread.TotalFrames = uint(len(r.CrashingThread.Frames))
	}
	return r
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
