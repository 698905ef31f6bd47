package task

import (
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"crashsentry/common/format/report"
)

const (
	DELIVER_REPORT = 1 << iota
	REMOVE_REPORT
)

// Report carries one crash report to the queue.
type Report struct {
	Type           uint           `json:"type"`
	Id             string         `json:"id"`
	InstallationId string         `json:"installation_id,omitempty"`
	Report         *report.Report `json:"report"`
	Time           string         `json:"time,omitempty"`
}

// Remove asks consumers to drop a report they already hold.
type Remove struct {
	Type uint   `json:"type"`
	Id   string `json:"id"`
	Time string `json:"time,omitempty"`
}

func FromJson(data []byte) interface{} {
	type Test struct {
		Type uint `json:"type"`
	}

	var t Test
	if err := json.Unmarshal(data, &t); err != nil {
		log.WithError(err).Error("Can't parse task")
		return nil
	}
	switch t.Type {
	case DELIVER_REPORT:
		var r Report
		err := json.Unmarshal(data, &r)
		if err != nil {
			log.WithError(err).Error("Can't parse report task")
			return nil
		}

		if len(r.Time) == 0 {
			r.Time = getTimeStamp()
		}

		return &r
	case REMOVE_REPORT:
		var r Remove
		err := json.Unmarshal(data, &r)
		if err != nil {
			log.WithError(err).Error("Can't parse remove task")
			return nil
		}

		if len(r.Time) == 0 {
			r.Time = getTimeStamp()
		}

		return &r
	default:
		return nil
	}
}

func CreateReportTask(r *report.Report) *Report {
	return &Report{Type: DELIVER_REPORT,
		Id:             r.Id,
		InstallationId: r.InstallationId,
		Report:         r,
		Time:           getTimeStamp()}
}

func CreateRemoveTask(id string) *Remove {
	return &Remove{Type: REMOVE_REPORT,
		Id:   id,
		Time: getTimeStamp()}
}

func getTimeStamp() string {
	t := time.Now()
	return t.Format(time.RFC3339)
}
