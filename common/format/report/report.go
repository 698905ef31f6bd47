package report

import (
	"time"
)

type CrashInfo struct {
	Address string `json:"address,omitempty"`
	Thread  uint64 `json:"crashing_thread"`
	Type    string `json:"type"`
	Signal  string `json:"signal,omitempty"`
}

type ModuleInfo struct {
	Path    string `json:"path"`
	Version string `json:"version"`
	Sum     string `json:"sum,omitempty"`
	Main    bool   `json:"main,omitempty"`
}

type SysInfo struct {
	CpuArch   string `json:"cpu_arch"`
	CpuCount  uint   `json:"cpu_count"`
	OS        string `json:"os"`
	GoVersion string `json:"go_version"`
	Hostname  string `json:"hostname,omitempty"`
}

type ThreadFrame struct {
	File     string `json:"file"`
	Frame    uint   `json:"frame"`
	Function string `json:"function"`
	Line     uint   `json:"line"`
	Offset   string `json:"offset,omitempty"`
}

type ThreadInfo struct {
	Id         uint64        `json:"id"`
	State      string        `json:"state"`
	FrameCount uint          `json:"frame_count"`
	Frames     []ThreadFrame `json:"frames"`
	CreatedBy  string        `json:"created_by,omitempty"`
}

type CrashingThread struct {
	Frames      []ThreadFrame `json:"frames"`
	ThreadId    uint64        `json:"thread_id"`
	TotalFrames uint          `json:"total_frames"`
}

type Context struct {
	CrashInfo      CrashInfo      `json:"crash_info"`
	CrashingThread CrashingThread `json:"crashing_thread"`
	Modules        []ModuleInfo   `json:"modules,omitempty"`
	SystemInfo     SysInfo        `json:"system_info"`
	ThreadCount    uint           `json:"thread_count"`
	Threads        []ThreadInfo   `json:"threads,omitempty"`
	Suspended      bool           `json:"threads_suspended"`
}

type UserInfo struct {
	Name       string   `json:"name,omitempty"`
	Language   string   `json:"language,omitempty"`
	LineOfCode string   `json:"line_of_code,omitempty"`
	StackTrace []string `json:"stack_trace,omitempty"`
}

type Report struct {
	Context
	Id             string    `json:"id"`
	InstallationId string    `json:"installation_id,omitempty"`
	Version        string    `json:"build,omitempty"`
	CrashType      string    `json:"crash_type"`
	Fatal          bool      `json:"fatal"`
	ExceptionName  string    `json:"exception,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	Source         string    `json:"source,omitempty"`
	User           *UserInfo `json:"user,omitempty"`
	StalledMs      int64     `json:"stalled_ms,omitempty"`
	DateAdded      time.Time `json:"date_added"`
	RawStack       string    `json:"raw_stack,omitempty"`
}

// Saver persists a finished report and returns the id it was stored under.
type Saver interface {
	Save(r *Report) (string, error)
}

// Stage is one step of the post-processing pipeline run over every report
// before it is saved. Returning true stops the pipeline.
type Stage interface {
	Process(r *Report) bool
}

func Process(r *Report, stages []Stage) {
	for _, s := range stages {
		if s.Process(r) {
			return
		}
	}
}
