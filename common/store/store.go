// Package store keeps crash reports as JSON files in a single directory,
// oldest first, with at most MaxReports of them.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"crashsentry/common/format/report"
)

const (
	DefaultMaxReports = 5

	reportPrefix = "report_"
	reportSuffix = ".json"
)

var ErrNotFound = errors.New("report not found")

type Store struct {
	mu         sync.Mutex
	dir        string
	maxReports int
}

func New(dir string, maxReports int) (*Store, error) {
	if len(dir) == 0 {
		return nil, errors.New("report directory is not set")
	}
	if maxReports <= 0 {
		maxReports = DefaultMaxReports
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.WithError(err).
			WithField("dir", dir).
			Error("Can't create report directory")
		return nil, errors.Wrap(err, 0)
	}
	return &Store{dir: dir, maxReports: maxReports}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) MaxReports() int {
	return s.maxReports
}

// Save writes r and prunes the store back to MaxReports.
func (s *Store) Save(r *report.Report) (string, error) {
	if len(r.Id) == 0 {
		return "", errors.New("report has no id")
	}

	data, err := json.Marshal(r)
	if err != nil {
		log.WithError(err).Error("Can't serialize report")
		return "", errors.Wrap(err, 0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	when := r.DateAdded
	if when.IsZero() {
		when = time.Now()
	}
	path := filepath.Join(s.dir, fileName(when, r.Id))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.WithError(err).
			WithField("file", tmp).
			Error("Can't write report")
		return "", errors.Wrap(err, 0)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, 0)
	}

	s.prune(s.maxReports)
	return r.Id, nil
}

func (s *Store) ReportCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.files()
	if err != nil {
		return 0
	}
	return len(names)
}

// IDs lists stored report ids, oldest first.
func (s *Store) IDs() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.files()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, idOf(name))
	}
	return ids, nil
}

func (s *Store) Load(id string) (*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return s.read(name)
}

// All loads every stored report, oldest first. Files that can't be parsed
// are logged and skipped.
func (s *Store) All() ([]*report.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.files()
	if err != nil {
		return nil, err
	}

	reports := make([]*report.Report, 0, len(names))
	for _, name := range names {
		r, err := s.read(name)
		if err != nil {
			continue
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.find(id)
	if err != nil {
		return err
	}
	return s.remove(name)
}

func (s *Store) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.files()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.remove(name); err != nil {
			return err
		}
	}
	return nil
}

// Prune removes the oldest reports until at most max remain and returns
// how many were removed.
func (s *Store) Prune(max int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prune(max)
}

// RemoveOlder removes reports stored before t.
func (s *Store) RemoveOlder(t time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.files()
	if err != nil {
		return 0, err
	}

	removed := 0
	cutoff := timeOf(t)
	for _, name := range names {
		if stampOf(name) >= cutoff {
			break
		}
		if err := s.remove(name); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *Store) prune(max int) int {
	names, err := s.files()
	if err != nil || len(names) <= max {
		return 0
	}

	removed := 0
	for _, name := range names[:len(names)-max] {
		if s.remove(name) == nil {
			removed++
		}
	}
	log.WithFields(log.Fields{
		"removed": removed,
		"max":     max,
	}).Debug("Pruned old reports")
	return removed
}

func (s *Store) files() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.WithError(err).
			WithField("dir", s.dir).
			Error("Can't read report directory")
		return nil, errors.Wrap(err, 0)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, reportPrefix) || !strings.HasSuffix(name, reportSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) find(id string) (string, error) {
	names, err := s.files()
	if err != nil {
		return "", err
	}
	for _, name := range names {
		if idOf(name) == id {
			return name, nil
		}
	}
	return "", ErrNotFound
}

func (s *Store) read(name string) (*report.Report, error) {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("file", path).Error("Can't read report")
		return nil, errors.Wrap(err, 0)
	}

	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		log.WithError(err).WithField("file", path).Error("Can't parse report")
		return nil, errors.Wrap(err, 0)
	}
	if r.Id == "" {
		r.Id = idOf(name)
	}
	return &r, nil
}

func (s *Store) remove(name string) error {
	path := filepath.Join(s.dir, name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.WithError(err).WithField("file", path).Error("Can't remove report")
		return errors.Wrap(err, 0)
	}
	return nil
}

// fileName sorts chronologically: report_<yyyymmddhhmmss.nnnnnnnnn>-<id>.json
func fileName(t time.Time, id string) string {
	return fmt.Sprintf("%s%s-%s%s", reportPrefix, timeOf(t), id, reportSuffix)
}

func timeOf(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d.%09d",
		t.Year(),
		t.Month(),
		t.Day(),
		t.Hour(),
		t.Minute(),
		t.Second(),
		t.Nanosecond())
}

func stampOf(name string) string {
	name = strings.TrimPrefix(name, reportPrefix)
	if idx := strings.IndexByte(name, '-'); idx >= 0 {
		return name[:idx]
	}
	return ""
}

func idOf(name string) string {
	name = strings.TrimSuffix(strings.TrimPrefix(name, reportPrefix), reportSuffix)
	if idx := strings.IndexByte(name, '-'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
