package sink

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"crashsentry/common/data/base"
	"crashsentry/common/format/report"
	"crashsentry/common/sentry"
)

const DefaultDeliveryInterval = time.Minute

type ReportStore interface {
	All() ([]*report.Report, error)
	Delete(id string) error
}

// Deliverer periodically sends stored reports to a sink and removes the
// ones that arrived. It parks at its gate while a crash is being captured.
type Deliverer struct {
	store    ReportStore
	sink     Sink
	cache    base.Cashe
	gate     *sentry.Gate
	interval time.Duration
	kick     chan struct{}
}

func NewDeliverer(store ReportStore, s Sink, cache base.Cashe, interval time.Duration) *Deliverer {
	if cache == nil {
		cache = base.NewMemory()
	}
	if interval <= 0 {
		interval = DefaultDeliveryInterval
	}
	return &Deliverer{
		store:    store,
		sink:     s,
		cache:    cache,
		gate:     sentry.NewGate(),
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

// Gate is the worker handle to register with the session's WorkerSet.
func (d *Deliverer) Gate() *sentry.Gate {
	return d.gate
}

// Kick asks for a delivery round without waiting for the next tick.
func (d *Deliverer) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *Deliverer) Run(ctx context.Context) {
	d.gate.Bind()

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-d.kick:
		case <-ctx.Done():
			return
		}

		d.gate.Checkpoint()
		if _, err := d.SendAll(); err != nil {
			log.WithError(err).Warning("Delivery round failed")
		}
	}
}

// SendAll sends every stored report that isn't known to be delivered and
// returns how many reached the sink.
func (d *Deliverer) SendAll() (int, error) {
	reports, err := d.store.All()
	if err != nil {
		return 0, err
	}

	var pending []*report.Report
	for _, r := range reports {
		if _, err := d.cache.Get(base.DeliveredKey(r.Id)); err == nil {
			d.remove(r.Id)
			continue
		}
		pending = append(pending, r)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	sent := 0
	d.sink.Send(pending, func(delivered []string, success bool) {
		for _, id := range delivered {
			if err := d.cache.Set(base.DeliveredKey(id), time.Now().UTC().Format(time.RFC3339)); err != nil {
				log.WithError(err).Warning("Can't mark report delivered")
			}
			d.remove(id)
		}
		sent = len(delivered)

		log.WithFields(log.Fields{
			"sent":    sent,
			"pending": len(pending),
			"success": success,
		}).Info("Sent crash reports")
	})
	return sent, nil
}

func (d *Deliverer) remove(id string) {
	if err := d.store.Delete(id); err != nil {
		log.WithError(err).
			WithField("id", id).
			Warning("Can't remove delivered report")
	}
}
