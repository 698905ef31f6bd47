package sentry

import (
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// HandlerState is the lifecycle of a single sentry's capture:
//
//	idle      -> capturing
//	capturing -> resumed | terminating
//	resumed   -> idle
//
// terminating is final, the process is expected to be gone.
type HandlerState int32

const (
	StateIdle HandlerState = iota
	StateCapturing
	StateResumedOk
	StateTerminating
)

var handlerTransitions = map[HandlerState][]HandlerState{
	StateIdle:      {StateCapturing},
	StateCapturing: {StateResumedOk, StateTerminating},
	StateResumedOk: {StateIdle},
}

func (s HandlerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateResumedOk:
		return "resumed"
	case StateTerminating:
		return "terminating"
	}
	return "unknown"
}

type machine struct {
	state atomic.Int32
}

func (m *machine) State() HandlerState {
	return HandlerState(m.state.Load())
}

func (m *machine) transition(to HandlerState) bool {
	from := m.State()
	for _, allowed := range handlerTransitions[from] {
		if allowed == to {
			m.state.Store(int32(to))
			return true
		}
	}

	log.WithFields(log.Fields{
		"from": from,
		"to":   to,
	}).Error("Rejected sentry state transition")
	return false
}
