package cfg

import (
	"time"

	"crashsentry/common/sentry"
)

type WebServerCfg struct {
	Port uint   `json:"port"`
	Host string `json:"host"`
}

type SentryCfg struct {
	CrashTypes                       []string `json:"crash_types"`
	ThreadTracing                    bool     `json:"thread_tracing"`
	ReportWhenDebuggerIsAttached     bool     `json:"report_when_debugger_attached"`
	SuspendThreadsForUserReported    bool     `json:"suspend_threads_for_user_reported"`
	WriteBinaryImagesForUserReported bool     `json:"write_binary_images_for_user_reported"`
	DeadlockIntervalMs               int      `json:"deadlock_interval_ms"`
	StackBufferKb                    int      `json:"stack_buffer_kb"`
	SkipFrames                       []string `json:"skip_frames"`
	PrintTrace                       bool     `json:"print_trace"`
}

type StoreCfg struct {
	Dir                string `json:"dir"`
	MaxReports         int    `json:"max_reports"`
	DeliveryIntervalMs int    `json:"delivery_interval_ms"`
}

type RabbitCfg struct {
	Server string `json:"server"`
	Queue  string `json:"queue"`
}

type RedisCfg struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type CacheCfg struct {
	Memcached []string `json:"memcache"`
	Redis     RedisCfg `json:"redis"`
}

type LogCfg struct {
	Level string `json:"level"`
}

type JsonConfig struct {
	Sentry       *SentryCfg    `json:"sentry"`
	Store        *StoreCfg     `json:"store"`
	Server       *WebServerCfg `json:"web_server"`
	Rabbit       *RabbitCfg    `json:"rabbit_cfg"`
	Elastic      string        `json:"elastic"`
	Cache        *CacheCfg     `json:"cache"`
	Log          *LogCfg       `json:"log"`
	MonitorPanic bool          `json:"monitor_panics"`

	crashTypes sentry.CrashType
}

func (cfg *JsonConfig) sentryCfg() *SentryCfg {
	if cfg.Sentry == nil {
		return &SentryCfg{}
	}
	return cfg.Sentry
}

func (cfg *JsonConfig) WebServerEnable() bool {
	return cfg.Server != nil && cfg.Server.Port != 0
}

func (cfg *JsonConfig) Port() uint {
	if cfg.Server == nil {
		return 0
	}
	return cfg.Server.Port
}

func (cfg *JsonConfig) Host() string {
	if cfg.Server == nil {
		return ""
	}
	return cfg.Server.Host
}

func (cfg *JsonConfig) LogLevel() string {
	if cfg.Log == nil || len(cfg.Log.Level) == 0 {
		return "info"
	}
	return cfg.Log.Level
}

func (cfg *JsonConfig) CrashTypes() sentry.CrashType {
	return cfg.crashTypes
}

func (cfg *JsonConfig) ThreadTracingEnabled() bool {
	return cfg.sentryCfg().ThreadTracing
}

func (cfg *JsonConfig) ReportWhenDebuggerIsAttached() bool {
	return cfg.sentryCfg().ReportWhenDebuggerIsAttached
}

func (cfg *JsonConfig) SuspendThreadsForUserReported() bool {
	return cfg.sentryCfg().SuspendThreadsForUserReported
}

func (cfg *JsonConfig) WriteBinaryImagesForUserReported() bool {
	return cfg.sentryCfg().WriteBinaryImagesForUserReported
}

func (cfg *JsonConfig) DeadlockInterval() time.Duration {
	return time.Duration(cfg.sentryCfg().DeadlockIntervalMs) * time.Millisecond
}

func (cfg *JsonConfig) StackBufferSize() int {
	return cfg.sentryCfg().StackBufferKb << 10
}

func (cfg *JsonConfig) SkipFrames() []string {
	return cfg.sentryCfg().SkipFrames
}

func (cfg *JsonConfig) PrintTrace() bool {
	return cfg.sentryCfg().PrintTrace
}

func (cfg *JsonConfig) MonitorPanics() bool {
	return cfg.MonitorPanic
}

func (cfg *JsonConfig) StoreDir() string {
	return cfg.Store.Dir
}

func (cfg *JsonConfig) MaxReports() int {
	return cfg.Store.MaxReports
}

func (cfg *JsonConfig) DeliveryInterval() time.Duration {
	return time.Duration(cfg.Store.DeliveryIntervalMs) * time.Millisecond
}

func (cfg *JsonConfig) RabbitServer() string {
	if cfg.Rabbit == nil {
		return ""
	}
	return cfg.Rabbit.Server
}

func (cfg *JsonConfig) RabbitQueue() string {
	if cfg.Rabbit == nil {
		return ""
	}
	return cfg.Rabbit.Queue
}

func (cfg *JsonConfig) ElasticUrl() string {
	return cfg.Elastic
}

func (cfg *JsonConfig) Memcache() []string {
	if cfg.Cache == nil {
		return nil
	}
	return cfg.Cache.Memcached
}

func (cfg *JsonConfig) RedisAddres() string {
	if cfg.Cache == nil {
		return ""
	}
	return cfg.Cache.Redis.Address
}

func (cfg *JsonConfig) RedisPassword() string {
	if cfg.Cache == nil {
		return ""
	}
	return cfg.Cache.Redis.Password
}
