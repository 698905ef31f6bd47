package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"crashsentry/common/data/base"
	"crashsentry/common/store"
)

const (
	URL = `url`
	DIR = `dir`
	MAX = `max`
)

var Repository *base.Repository = nil

func init() {
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stdout)
}

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "crashsentry-cli"
	app.Usage = "command line utils for stored crash reports"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   DIR,
			Value:  "/var/lib/crashsentry/reports",
			EnvVar: "CRASHSENTRY_REPORTS",
		},
		cli.IntFlag{
			Name:  MAX,
			Value: store.DefaultMaxReports,
		},
	}

	app.Commands = []cli.Command{
		ListCommand(),
		ShowCommand(),
		RemoveCommand(),
		SendCommand(),
	}
	return app
}

func openStore(c *cli.Context) (*store.Store, error) {
	s, err := store.New(c.GlobalString(DIR), c.GlobalInt(MAX))
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"dir":   c.GlobalString(DIR),
		}).Error("Can't open report store")
	}
	return s, err
}

func initRepository(url string) error {
	r, err := base.NewRepository(url, nil)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
			"url":   url,
		}).Error("Can't create ElasticSearch client")
		return err
	}
	Repository = r
	return nil
}
