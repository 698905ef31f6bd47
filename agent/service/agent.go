package service

import (
	"context"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"crashsentry/agent/api"
	"crashsentry/agent/cfg"
	"crashsentry/common/data/base"
	"crashsentry/common/format/report"
	"crashsentry/common/pipeline"
	"crashsentry/common/sentry"
	"crashsentry/common/sink"
	"crashsentry/common/store"
)

// Agent wires a sentry session to the report store, the delivery sinks and
// the HTTP control surface.
type Agent struct {
	conf           cfg.Config
	installationId string

	Session   *sentry.Session
	Loop      *sentry.MainLoop
	Workers   *sentry.WorkerSet
	Store     *store.Store
	Writer    *report.Writer
	Deliverer *sink.Deliverer
	Service   *api.GinAgentService

	sink sink.Sink
}

func New(conf cfg.Config, version string) (*Agent, error) {
	a := &Agent{conf: conf}

	var err error
	a.Store, err = store.New(conf.StoreDir(), conf.MaxReports())
	if err != nil {
		return nil, err
	}

	a.installationId, err = report.InstallationId(conf.StoreDir())
	if err != nil {
		log.WithError(err).Warning("Can't load installation id")
	}

	a.Writer = report.NewWriter(a.Store, report.WriterOptions{
		InstallationId: a.installationId,
		Version:        version,
		Stages:         pipeline.Default(conf.SkipFrames()),
		PrintTrace:     conf.PrintTrace(),
	})

	a.Loop = sentry.NewMainLoop(0)
	a.Workers = &sentry.WorkerSet{}
	a.Session = sentry.NewSession(sentry.Options{
		ThreadTracingEnabled:             conf.ThreadTracingEnabled(),
		ReportWhenDebuggerIsAttached:     conf.ReportWhenDebuggerIsAttached(),
		SuspendThreadsForUserReported:    conf.SuspendThreadsForUserReported(),
		WriteBinaryImagesForUserReported: conf.WriteBinaryImagesForUserReported(),
		Suspender:                        a.Workers,
		MainThread:                       a.Loop,
		DeadlockInterval:                 conf.DeadlockInterval(),
		StackBufferSize:                  conf.StackBufferSize(),
	})

	a.sink, err = newSink(conf)
	if err != nil {
		return nil, err
	}
	var deliver func()
	if a.sink != nil {
		a.Deliverer = sink.NewDeliverer(a.Store, a.sink, newCache(conf), conf.DeliveryInterval())
		a.Workers.Add(a.Deliverer.Gate())
		deliver = a.Deliverer.Kick
	}

	if conf.WebServerEnable() {
		a.Service = api.NewGinAgentService(conf, a.Session, a.Store, a.installationId, deliver)
		if err := a.Service.Init(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) InstallationId() string {
	return a.installationId
}

// Install arms the configured sentries and returns the installed set.
func (a *Agent) Install() sentry.CrashType {
	installed := a.Session.Install(a.conf.CrashTypes(), a.Writer.OnCrash)
	log.WithFields(log.Fields{
		"requested": a.conf.CrashTypes(),
		"installed": installed,
	}).Info("Crash sentries installed")
	return installed
}

// Run starts the background workers and runs the main loop on the calling
// goroutine until ctx is done.
func (a *Agent) Run(ctx context.Context) {
	if a.Deliverer != nil {
		a.Session.Go(func() { a.Deliverer.Run(ctx) })
		a.Deliverer.Kick()
	}
	if a.Service != nil {
		a.Session.Go(func() {
			if err := a.Service.Start(); err != nil {
				log.WithError(err).Error("Web server stopped")
			}
		})
	}

	a.Loop.Run(ctx)
}

// Reload applies a new configuration: sentries that are no longer wanted
// are uninstalled and new ones installed.
func (a *Agent) Reload(conf cfg.Config) {
	removed := a.conf.CrashTypes() &^ conf.CrashTypes()
	if removed != 0 {
		a.Session.Uninstall(removed)
	}
	a.conf = conf
	if conf.CrashTypes() != a.Session.Installed() {
		a.Install()
	}
}

func (a *Agent) Close() {
	a.Session.Close()
	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			log.WithError(err).Warning("Can't close sink")
		}
	}
}

func newSink(conf cfg.Config) (sink.Sink, error) {
	var sinks sink.Multi

	if len(conf.RabbitServer()) != 0 {
		s, err := sink.NewRabbitSink(conf.RabbitServer(), conf.RabbitQueue())
		if err != nil {
			return nil, errors.WrapPrefix(err, "Can't connect to rabbit", 0)
		}
		sinks = append(sinks, s)
	}

	if len(conf.ElasticUrl()) != 0 {
		rep, err := base.NewRepository(conf.ElasticUrl(), newCache(conf))
		if err != nil {
			log.WithError(err).Error("Can't create repository")
			sinks.Close()
			return nil, err
		}
		sinks = append(sinks, sink.NewElasticSink(rep, 0))
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

func newCache(conf cfg.Config) base.Cashe {
	if len(conf.Memcache()) > 0 {
		if c, err := base.NewMemcache(conf.Memcache(), base.DefaultExpiration); err == nil {
			return c
		}
	}
	if len(conf.RedisAddres()) > 0 {
		if c, err := base.NewRedis(conf.RedisAddres(), conf.RedisPassword(), base.DefaultExpiration); err == nil {
			return c
		}
	}
	return base.NewMemory()
}
