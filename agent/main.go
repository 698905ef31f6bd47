package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bugsnag/panicwrap"
	log "github.com/sirupsen/logrus"

	"crashsentry/agent/cfg"
	"crashsentry/agent/service"
	"crashsentry/common/format/report"
	"crashsentry/common/store"
)

var Build string
var Version string

const (
	SIGHUP  = syscall.SIGHUP
	SIGINT  = syscall.SIGINT
	SIGTERM = syscall.SIGTERM
)

func init() {

	var cPath string
	var showVersion bool = false
	var showBuild bool = false

	flag.StringVar(&cPath, "config", "", "path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "show version")
	flag.BoolVar(&showBuild, "build", false, "show build")

	flag.Parse()

	if showVersion {
		fmt.Printf("Version: %s\n", Version)
		os.Exit(0)
	}

	if showBuild {
		fmt.Printf("Build: %s\n", Build)
		os.Exit(0)
	}

	if cPath != "" {
		conf, err := cfg.FromJson(cPath)
		if err != nil {
			log.WithError(err).Fatal("Error reading configuration file")
		}

		cfg.GlobalConfig = conf
		cfg.GlobalConfigPath = cPath

	} else {
		flag.PrintDefaults()
		log.Fatal("Config file is not set")
	}

	level, err := log.ParseLevel(cfg.GlobalConfig.LogLevel())
	if err == nil {
		log.WithField("level", level).
			Info("Change log level")
		log.SetLevel(level)
	} else {
		log.WithError(err).Warning("Can't setup log level")
	}
}

func main() {
	if cfg.GlobalConfig.MonitorPanics() {
		monitorPanics(cfg.GlobalConfig)
	}

	agent, err := service.New(cfg.GlobalConfig, Version)
	if err != nil {
		log.WithError(err).Fatal("Can't start agent")
	}
	defer agent.Close()
	agent.Install()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, SIGHUP, SIGINT, SIGTERM)
	go func() {
		for sig := range signals {
			if sig != SIGHUP {
				log.WithField("signal", sig.String()).Info("Shutting down")
				cancel()
				return
			}
			if !agent.Loop.Dispatch(func() { handleSignal(agent) }) {
				log.Warning("Main loop is busy, configuration not reloaded")
			}
		}
	}()

	agent.Run(ctx)
}

// monitorPanics re-executes the agent under a monitor that turns an
// uncaught panic on stderr into a stored report.
func monitorPanics(conf cfg.Config) {
	err := panicwrap.BasicMonitor(func(output string) {
		s, err := store.New(conf.StoreDir(), conf.MaxReports())
		if err != nil {
			log.WithError(err).Error("Can't open report store for panic output")
			return
		}
		id, _ := report.InstallationId(conf.StoreDir())
		if _, err := s.Save(report.FromPanicOutput(output, id)); err != nil {
			log.WithError(err).Error("Can't save panic report")
		}
	})
	if err != nil {
		log.WithError(err).Warning("Can't monitor panics")
	}
}

func handleSignal(agent *service.Agent) {
	cfg.GlobalConfigMutex.Lock()
	defer cfg.GlobalConfigMutex.Unlock()

	log.Info("Try to reload configuration")
	if len(cfg.GlobalConfigPath) != 0 {
		conf, err := cfg.FromJson(cfg.GlobalConfigPath)
		if err != nil {
			log.WithError(err).
				Error("Error reading configuration file")
			return
		}
		noErrors := true

		if conf.LogLevel() != cfg.GlobalConfig.LogLevel() {
			err := changeLevel(conf.LogLevel())
			if err != nil {
				noErrors = false
			}
		}

		if noErrors {
			agent.Reload(conf)
			cfg.GlobalConfig = conf
			log.Info("Reloaded configuration")
		}
	}
}

func changeLevel(l string) error {
	level, err := log.ParseLevel(l)
	if err != nil {
		log.WithError(err).
			Warn("Can't parse level")
		return err
	}

	log.WithFields(log.Fields{
		"old level": cfg.GlobalConfig.LogLevel(),
		"new level": l,
	}).
		Info("Change log level")
	log.SetLevel(level)
	return nil
}
