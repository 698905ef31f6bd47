package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

const (
	AGE  = `older`
	SIZE = `count`
	SHOW = `show_only`
)

type Callback func(c *cli.Context, args cli.Args) error

var rmCallbacks = map[string]Callback{
	"reports": rmReports,
	"crashes": rmCrashes,
}

func RemoveCommand() cli.Command {
	return cli.Command{
		Name:    "remove",
		Aliases: []string{"rm"},
		Usage:   "remove local reports or indexed crashes",
		Action:  remove,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  AGE,
				Value: "16d",
			},
			cli.StringFlag{
				Name:  URL,
				Value: "http://127.0.0.1:9200",
			},
			cli.IntFlag{
				Name:  SIZE,
				Value: 1000,
			},
			cli.BoolFlag{
				Name: SHOW,
			},
		},
	}
}

func remove(c *cli.Context) error {
	if c.NArg() == 0 {
		message := `Empty task, available values:
	reports
	crashes`
		fmt.Fprintln(c.App.Writer, message)
		return fmt.Errorf("Empty task")
	}

	task := c.Args().Get(0)

	cb, ok := rmCallbacks[task]
	if !ok {
		fmt.Fprintf(c.App.Writer, "Unknown task %s\n", task)
		return fmt.Errorf("Unknown task %s", task)
	}
	return cb(c, cli.Args(c.Args().Tail()))
}

// parseAge reads spans such as "16d", "12h" or "90m".
func parseAge(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, errors.Errorf("invalid age %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Errorf("invalid age %q", s)
	}
	return d, nil
}

func rmReports(c *cli.Context, args cli.Args) error {
	age, err := parseAge(c.String(AGE))
	if err != nil {
		return err
	}

	s, err := openStore(c)
	if err != nil {
		return err
	}

	if c.Bool(SHOW) {
		reports, err := s.All()
		if err != nil {
			return err
		}
		cutoff := time.Now().Add(-age)
		for _, r := range reports {
			if r.DateAdded.Before(cutoff) {
				log.WithFields(log.Fields{
					"id":   r.Id,
					"type": r.CrashType,
					"date": r.DateAdded,
				}).Info("Report")
			}
		}
		return nil
	}

	removed, err := s.RemoveOlder(time.Now().Add(-age))
	if err != nil {
		return err
	}
	removed += s.Prune(c.Int(SIZE))

	log.WithFields(log.Fields{
		"removed": removed,
		"dir":     s.Dir(),
	}).Info("Removed reports")
	return nil
}

func rmCrashes(c *cli.Context, args cli.Args) error {
	if err := initRepository(c.String(URL)); err != nil {
		return err
	}

	older := c.String(AGE)
	showOnly := c.Bool(SHOW)

	reports, err := Repository.FindOlder(context.Background(), older, c.Int(SIZE))
	if err != nil {
		log.WithError(err).Error("Can't call to Elastic")
		return err
	}

	for _, r := range reports {
		if showOnly {
			log.WithFields(log.Fields{
				"id":        r.Id,
				"type":      r.CrashType,
				"signature": r.Signature,
				"date":      r.DateAdded,
			}).Info("Crash")
			continue
		}

		if err := Repository.RemoveReport(context.Background(), r.Id); err != nil {
			return err
		}
		log.WithFields(log.Fields{
			"id":   r.Id,
			"type": r.CrashType,
		}).Info("Removed crash")
	}

	return nil
}
