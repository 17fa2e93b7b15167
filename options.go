package statsig

import "time"

const (
	defaultConfigSyncInterval = 20 * time.Second
	defaultLoggingInterval    = time.Minute
	defaultMaxQueuedEvents    = 950
)

// Options configures a Client. The zero value uses the public endpoints
// with caching enabled.
type Options struct {
	// APIURL serves check_gate and get_config fallbacks.
	APIURL string `json:"api"`
	// CDNURL serves download_config_specs.
	CDNURL string `json:"cdn"`
	// EventsURL serves log_event and log_custom_exposure.
	EventsURL string `json:"events"`

	// DisableCache turns off the local evaluator and background loops;
	// every call goes straight to the API.
	DisableCache bool `json:"disableCache"`

	ConfigSyncInterval   time.Duration
	LoggingInterval      time.Duration
	LoggingMaxBufferSize int
}

func (o *Options) syncInterval() time.Duration {
	if o.ConfigSyncInterval > 0 {
		return o.ConfigSyncInterval
	}
	return defaultConfigSyncInterval
}

func (o *Options) loggingInterval() time.Duration {
	if o.LoggingInterval > 0 {
		return o.LoggingInterval
	}
	return defaultLoggingInterval
}

func (o *Options) maxQueuedEvents() int {
	if o.LoggingMaxBufferSize > 0 {
		return o.LoggingMaxBufferSize
	}
	return defaultMaxQueuedEvents
}
