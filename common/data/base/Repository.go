package base

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/olivere/elastic.v5"

	"crashsentry/common/format/report"
)

const (
	ReportIndex = "crashsentry"
	ReportType  = "crash"
)

// Repository stores delivered crash reports in Elasticsearch. The cache
// short-circuits lookups for reports that are known to be there.
type Repository struct {
	db    *elastic.Client
	cache Cashe
}

func (r *Repository) markDelivered(id string) {
	err := r.cache.Set(DeliveredKey(id), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		log.WithError(err).Warning("Can't put delivered report in cache")
	}
}

func (r *Repository) AddReport(ctx context.Context, rep *report.Report) error {
	_, err := r.db.
		Index().
		Index(ReportIndex).
		Type(ReportType).
		Id(rep.Id).
		BodyJson(rep).
		Refresh("true").
		Do(ctx)

	if err != nil {
		log.WithError(err).
			WithField("id", rep.Id).
			Error("Can't insert crash report")
		return errors.Wrap(err, 0)
	}

	r.markDelivered(rep.Id)
	return nil
}

func (r *Repository) IsExist(ctx context.Context, id string) (bool, error) {
	if _, err := r.cache.Get(DeliveredKey(id)); err == nil {
		return true, nil
	}

	rep, err := r.GetReport(ctx, id)
	if elastic.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rep != nil, nil
}

func (r *Repository) GetReport(ctx context.Context, id string) (*report.Report, error) {
	get, err := r.db.Get().
		Index(ReportIndex).
		Type(ReportType).
		Id(id).
		Do(ctx)
	if err != nil {
		return nil, err
	}

	var rep report.Report
	err = json.Unmarshal(*get.Source, &rep)
	if err != nil {
		log.WithError(err).Error("Can't deserialize crash report")
		return nil, errors.Wrap(err, 0)
	}
	rep.Id = id
	r.markDelivered(id)
	return &rep, nil
}

// FindOlder returns up to size reports added more than older ago
// (an Elasticsearch date math span such as "16d"), oldest first.
func (r *Repository) FindOlder(ctx context.Context, older string, size int) ([]report.Report, error) {
	rng := elastic.NewRangeQuery("date_added")
	rng.Lte(fmt.Sprintf("now-%s", older))

	searchRes, err := r.db.Search().
		Index(ReportIndex).
		Type(ReportType).
		Query(elastic.NewConstantScoreQuery(rng)).
		Sort("date_added", true).
		Size(size).
		Do(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"older": older,
			"error": err,
		}).Error("Can't search crash reports")
		return nil, errors.Wrap(err, 0)
	}

	var typ report.Report
	var reports []report.Report
	for _, item := range searchRes.Each(reflect.TypeOf(typ)) {
		reports = append(reports, item.(report.Report))
	}
	return reports, nil
}

func (r *Repository) RemoveReport(ctx context.Context, id string) error {
	_, err := elastic.NewDeleteService(r.db).
		Index(ReportIndex).
		Type(ReportType).
		Id(id).
		Do(ctx)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"id":    id,
		}).Error("Can't remove document in Elastic")
		return errors.Wrap(err, 0)
	}
	return nil
}

func NewRepository(connectionUrl string, c Cashe) (*Repository, error) {
	if c == nil {
		c = NewMemory()
	}
	b, err := elastic.NewClient(elastic.SetURL(connectionUrl), elastic.SetSniff(false))
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return &Repository{
		db:    b,
		cache: c,
	}, nil
}
