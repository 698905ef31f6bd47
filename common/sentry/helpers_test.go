package sentry

import (
	"io"
	"os"
	"sync"
	"syscall"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type recordingDisposition struct {
	mu         sync.Mutex
	reraised   []syscall.Signal
	repanicked []interface{}
	exits      []int
	onReraise  func(sig syscall.Signal)
}

func (d *recordingDisposition) Reraise(sig syscall.Signal) {
	d.mu.Lock()
	d.reraised = append(d.reraised, sig)
	cb := d.onReraise
	d.mu.Unlock()
	if cb != nil {
		cb(sig)
	}
}

func (d *recordingDisposition) Repanic(v interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.repanicked = append(d.repanicked, v)
}

func (d *recordingDisposition) Exit(code int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.exits = append(d.exits, code)
}

func (d *recordingDisposition) reraiseCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.reraised)
}

func (d *recordingDisposition) exitCodes() []int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.exits...)
}

func (d *recordingDisposition) repanicCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.repanicked)
}

type countingSuspender struct {
	mu       sync.Mutex
	suspends int
	resumes  int
	reserved []ThreadID
	fail     error
}

func (c *countingSuspender) SuspendAllExcept(reserved []ThreadID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.suspends++
	c.reserved = append([]ThreadID(nil), reserved...)
	return nil
}

func (c *countingSuspender) ResumeAllExcept(reserved []ThreadID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.resumes++
	return nil
}

func (c *countingSuspender) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.suspends, c.resumes
}

func newTestSession(opts Options) (*Session, *recordingDisposition) {
	d := &recordingDisposition{}
	opts.Disposition = d
	if opts.IsBeingTraced == nil {
		opts.IsBeingTraced = func() bool { return false }
	}
	if opts.StackBufferSize == 0 {
		opts.StackBufferSize = 8 << 10
	}
	if opts.PanicOutput == nil {
		opts.PanicOutput = io.Discard
	}
	return NewSession(opts), d
}
