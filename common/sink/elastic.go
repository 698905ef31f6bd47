package sink

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"crashsentry/common/data/base"
	"crashsentry/common/format/report"
)

type reportIndex interface {
	AddReport(ctx context.Context, r *report.Report) error
}

type ElasticSink struct {
	repository reportIndex
	timeout    time.Duration
}

func (s *ElasticSink) Send(reports []*report.Report, done Completion) {
	var delivered []string
	for _, r := range reports {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.repository.AddReport(ctx, r)
		cancel()
		if err != nil {
			continue
		}
		delivered = append(delivered, r.Id)
	}

	log.WithFields(log.Fields{
		"delivered": len(delivered),
		"total":     len(reports),
	}).Debug("Indexed crash reports")

	if done != nil {
		done(delivered, len(delivered) == len(reports))
	}
}

func (s *ElasticSink) Close() error {
	return nil
}

func NewElasticSink(repository *base.Repository, timeout time.Duration) *ElasticSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ElasticSink{repository: repository, timeout: timeout}
}
