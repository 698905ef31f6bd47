package sentry

import (
	"syscall"
	"time"
)

const (
	MaxReservedThreads = 8
	RegisterStateSize  = 512
)

// ThreadID identifies a goroutine by the id the runtime prints in stack dumps.
type ThreadID uint64

// OnCrashFunc receives the populated Context once a sentry has finished
// capturing. It runs on the handler path and must not wait on anything the
// crashed program may be holding.
type OnCrashFunc func(ctx *Context)

type SignalInfo struct {
	Number syscall.Signal
	Name   string
	Code   int
}

type ExceptionInfo struct {
	Name   string
	Reason string
}

type UserException struct {
	Name          string
	Reason        string
	Language      string
	LineOfCode    string
	StackTrace    []string
	LogAllThreads bool
	Terminate     bool
}

type DeadlockInfo struct {
	Stalled    time.Duration
	MainThread ThreadID
}

// Context is the in-flight crash state shared by every sentry of a Session.
type Context struct {
	// Session scoped, kept across ClearContext.
	OnCrash                          OnCrashFunc
	ThreadTracingEnabled             bool
	ReportWhenDebuggerIsAttached     bool
	SuspendThreadsForUserReported    bool
	WriteBinaryImagesForUserReported bool

	HandlingCrash    bool
	CrashType        CrashType
	CrashedThread    ThreadID
	CrashTime        time.Time
	ThreadsSuspended bool

	ReservedThreads [MaxReservedThreads]ThreadID
	ReservedCount   int

	FaultAddress     uintptr
	Signal           SignalInfo
	RegisterState    [RegisterStateSize]byte
	RegisterStateLen int

	Exception ExceptionInfo
	User      UserException
	Deadlock  DeadlockInfo

	// ReportID is set by OnCrash to the id of the report it produced, if any.
	ReportID string

	// Stack holds the crashing goroutine, Threads every goroutine. Both point
	// into buffers owned by the Session.
	Stack   []byte
	Threads []byte
}

// Reserved returns the reserved thread ids currently stamped on the context.
func (c *Context) Reserved() []ThreadID {
	return c.ReservedThreads[:c.ReservedCount]
}

// Description is a one-line summary of what triggered the capture.
func (c *Context) Description() string {
	switch c.CrashType {
	case CrashTypeSignal:
		return c.Signal.Name
	case CrashTypeUserReported:
		return c.User.Reason
	case CrashTypeMainThreadDeadlock:
		return "main thread deadlock after " + c.Deadlock.Stalled.String()
	default:
		if c.Exception.Reason != "" {
			return c.Exception.Reason
		}
		return c.Exception.Name
	}
}

// Fatal reports whether the process ends once this capture is delivered.
func (c *Context) Fatal() bool {
	if c.CrashType == CrashTypeUserReported {
		return c.User.Terminate
	}
	return c.CrashType.fatal()
}

func (c *Context) setRegisterState(raw []byte) {
	c.RegisterStateLen = copy(c.RegisterState[:], raw)
}

func (c *Context) reserve(id ThreadID) {
	if id == 0 {
		return
	}
	for _, r := range c.Reserved() {
		if r == id {
			return
		}
	}
	if c.ReservedCount < MaxReservedThreads {
		c.ReservedThreads[c.ReservedCount] = id
		c.ReservedCount++
	}
}

// ClearContext zeroes every field except the crash callback and the session
// scoped flags.
func ClearContext(ctx *Context) {
	onCrash := ctx.OnCrash
	threadTracingEnabled := ctx.ThreadTracingEnabled
	reportWhenDebuggerIsAttached := ctx.ReportWhenDebuggerIsAttached
	suspendThreadsForUserReported := ctx.SuspendThreadsForUserReported
	writeBinaryImagesForUserReported := ctx.WriteBinaryImagesForUserReported

	*ctx = Context{}

	ctx.OnCrash = onCrash
	ctx.ThreadTracingEnabled = threadTracingEnabled
	ctx.ReportWhenDebuggerIsAttached = reportWhenDebuggerIsAttached
	ctx.SuspendThreadsForUserReported = suspendThreadsForUserReported
	ctx.WriteBinaryImagesForUserReported = writeBinaryImagesForUserReported
}

// BeginHandlingCrash resets the context and marks a crash as in flight.
func BeginHandlingCrash(ctx *Context) {
	ClearContext(ctx)
	ctx.HandlingCrash = true
}
