package cfg

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"

	"crashsentry/common/sentry"
)

type Config interface {
	Port() uint
	Host() string
	WebServerEnable() bool
	LogLevel() string

	// sentry
	CrashTypes() sentry.CrashType
	ThreadTracingEnabled() bool
	ReportWhenDebuggerIsAttached() bool
	SuspendThreadsForUserReported() bool
	WriteBinaryImagesForUserReported() bool
	DeadlockInterval() time.Duration
	StackBufferSize() int
	SkipFrames() []string
	PrintTrace() bool
	MonitorPanics() bool

	// storage
	StoreDir() string
	MaxReports() int

	// delivery
	DeliveryInterval() time.Duration
	RabbitServer() string
	RabbitQueue() string
	ElasticUrl() string
	Memcache() []string
	RedisAddres() string
	RedisPassword() string
}

var GlobalConfigMutex sync.Mutex
var GlobalConfig Config
var GlobalConfigPath string

func FromJson(pathTo string) (Config, error) {
	file, err := os.Open(pathTo)
	if err != nil {
		log.WithError(err).Error("Get config failed")
		return nil, errors.Wrap(err, 0)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	var jconf JsonConfig
	err = decoder.Decode(&jconf)
	if err != nil {
		log.WithError(err).Error("Error at cfg parsing")
		return nil, errors.Wrap(err, 0)
	}

	if err := jconf.validate(); err != nil {
		return nil, err
	}

	return &jconf, nil
}

func (cfg *JsonConfig) validate() error {
	if cfg.Store == nil || len(cfg.Store.Dir) == 0 {
		return errors.New("The path to the report directory is not set")
	}

	var names []string
	if cfg.Sentry != nil {
		names = cfg.Sentry.CrashTypes
	}
	types, err := sentry.ParseCrashTypes(names)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		types = sentry.CrashTypeProductionSafe
	}
	cfg.crashTypes = types

	if cfg.Rabbit != nil && len(cfg.Rabbit.Server) != 0 && len(cfg.Rabbit.Queue) == 0 {
		return errors.New("The rabbit queue is not set")
	}
	return nil
}
