// Package sink delivers stored crash reports somewhere else: a RabbitMQ
// queue or an Elasticsearch index. Sinks publish once and report the
// outcome; retrying is the Deliverer's next tick.
package sink

import (
	"crashsentry/common/format/report"
)

// Completion receives the ids that reached the sink and whether every
// report did.
type Completion func(delivered []string, success bool)

type Sink interface {
	Send(reports []*report.Report, done Completion)
	Close() error
}

// Multi delivers to every sink; a report counts as delivered only when all
// of them accepted it.
type Multi []Sink

func (m Multi) Send(reports []*report.Report, done Completion) {
	counts := map[string]int{}
	success := true
	for _, s := range m {
		s.Send(reports, func(delivered []string, ok bool) {
			for _, id := range delivered {
				counts[id]++
			}
			success = success && ok
		})
	}

	var delivered []string
	for _, r := range reports {
		if counts[r.Id] == len(m) {
			delivered = append(delivered, r.Id)
		}
	}
	if done != nil {
		done(delivered, success && len(delivered) == len(reports))
	}
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
