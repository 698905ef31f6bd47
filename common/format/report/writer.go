package report

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	uuid "github.com/satori/go.uuid"
	log "github.com/sirupsen/logrus"

	"crashsentry/common/sentry"
)

type WriterOptions struct {
	InstallationId string
	Version        string
	Stages         []Stage

	// PrintTrace writes the crashing goroutine to TraceOutput (stdout by
	// default) before the report is saved.
	PrintTrace  bool
	TraceOutput io.Writer
}

// Writer turns a captured sentry.Context into a Report and hands it to a
// Saver. Its OnCrash method is the session's crash callback.
type Writer struct {
	saver  Saver
	opts   WriterOptions
	lastId atomic.Value
}

func NewWriter(saver Saver, opts WriterOptions) *Writer {
	if opts.TraceOutput == nil {
		opts.TraceOutput = os.Stdout
	}
	return &Writer{saver: saver, opts: opts}
}

func (w *Writer) OnCrash(ctx *sentry.Context) {
	if w.opts.PrintTrace {
		fmt.Fprintf(w.opts.TraceOutput, "%s: %s\n%s\n", ctx.CrashType, ctx.Description(), ctx.Stack)
	}

	r := w.Build(ctx)
	Process(r, w.opts.Stages)

	id, err := w.saver.Save(r)
	if err != nil {
		log.WithError(err).
			WithField("crash_type", r.CrashType).
			Error("Can't save crash report")
		return
	}
	ctx.ReportID = id
	w.lastId.Store(id)

	log.WithFields(log.Fields{
		"id":         id,
		"crash_type": r.CrashType,
		"signature":  r.Signature,
	}).Info("Crash report written")
}

// LastId returns the id of the most recently saved report.
func (w *Writer) LastId() string {
	id, _ := w.lastId.Load().(string)
	return id
}

func (w *Writer) Build(ctx *sentry.Context) *Report {
	r := &Report{
		Id:             uuid.NewV4().String(),
		InstallationId: w.opts.InstallationId,
		Version:        w.opts.Version,
		CrashType:      ctx.CrashType.String(),
		Fatal:          ctx.Fatal(),
		ExceptionName:  ctx.Exception.Name,
		Reason:         ctx.Description(),
		DateAdded:      ctx.CrashTime.UTC(),
		RawStack:       string(ctx.Stack),
	}
	if r.DateAdded.IsZero() {
		r.DateAdded = time.Now().UTC()
	}

	r.CrashInfo = CrashInfo{
		Thread: uint64(ctx.CrashedThread),
		Type:   r.CrashType,
	}
	if ctx.FaultAddress != 0 {
		r.CrashInfo.Address = fmt.Sprintf("0x%x", ctx.FaultAddress)
	}

	switch ctx.CrashType {
	case sentry.CrashTypeSignal:
		r.CrashInfo.Signal = ctx.Signal.Name
		r.ExceptionName = ctx.Signal.Name
	case sentry.CrashTypeUserReported:
		r.ExceptionName = ctx.User.Name
		r.User = &UserInfo{
			Name:       ctx.User.Name,
			Language:   ctx.User.Language,
			LineOfCode: ctx.User.LineOfCode,
			StackTrace: ctx.User.StackTrace,
		}
	case sentry.CrashTypeMainThreadDeadlock:
		r.StalledMs = ctx.Deadlock.Stalled.Milliseconds()
	}

	if crashed := ParseGoroutines(ctx.Stack); len(crashed) > 0 {
		r.CrashingThread = CrashingThread{
			Frames:      crashed[0].Frames,
			ThreadId:    crashed[0].Id,
			TotalFrames: crashed[0].FrameCount,
		}
	}
	if len(ctx.Threads) > 0 {
		r.Threads = ParseGoroutines(ctx.Threads)
		r.ThreadCount = uint(len(r.Threads))
	}
	r.Suspended = ctx.ThreadsSuspended

	if ctx.CrashType != sentry.CrashTypeUserReported || ctx.WriteBinaryImagesForUserReported {
		r.Modules = Modules()
	}
	r.SystemInfo = SystemInfo()
	return r
}

// Modules lists the main module and its dependencies as built into the binary.
func Modules() []ModuleInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}

	modules := []ModuleInfo{{
		Path:    info.Main.Path,
		Version: info.Main.Version,
		Sum:     info.Main.Sum,
		Main:    true,
	}}
	for _, dep := range info.Deps {
		m := dep
		if dep.Replace != nil {
			m = dep.Replace
		}
		modules = append(modules, ModuleInfo{
			Path:    m.Path,
			Version: m.Version,
			Sum:     m.Sum,
		})
	}
	return modules
}

func SystemInfo() SysInfo {
	host, _ := os.Hostname()
	return SysInfo{
		CpuArch:   runtime.GOARCH,
		CpuCount:  uint(runtime.NumCPU()),
		OS:        runtime.GOOS,
		GoVersion: runtime.Version(),
		Hostname:  host,
	}
}
