// Package statsig implements server-side feature gating, dynamic configs
// and experiments, evaluated locally against a periodically refreshed rule
// catalog with asynchronous exposure logging.
package statsig

import "fmt"

var instance *Client

// Initialize sets up the global instance with the given SDK key.
func Initialize(sdkKey string) error {
	return InitializeWithOptions(sdkKey, nil)
}

// InitializeWithOptions sets up the global instance with the given SDK key
// and options.
func InitializeWithOptions(sdkKey string, options *Options) error {
	if IsInitialized() {
		log.Warn("already initialized")
		return nil
	}
	client, err := NewClient(sdkKey, options)
	if err != nil {
		return err
	}
	instance = client
	return nil
}

// IsInitialized returns whether the global instance has been initialized.
func IsInitialized() bool {
	return instance != nil
}

// CheckGate reports whether the named gate passes for the user.
func CheckGate(user User, gate string) (bool, error) {
	return mustInstance("CheckGate").CheckGate(user, gate)
}

// GetDynamicConfig decodes the config value the user receives into out.
func GetDynamicConfig(user User, config string, out interface{}) error {
	return mustInstance("GetDynamicConfig").GetDynamicConfig(user, config, out)
}

// GetConfig returns the config value together with the matched group's
// metadata.
func GetConfig(user User, config string) (*DynamicConfig, error) {
	return mustInstance("GetConfig").GetConfig(user, config)
}

// GetExperiment returns the experiment value for the user.
func GetExperiment(user User, experiment string) (*Experiment, error) {
	return mustInstance("GetExperiment").GetExperiment(user, experiment)
}

// LogEvent ships a custom event immediately.
func LogEvent(event Event) error {
	return mustInstance("LogEvent").LogEvent(event)
}

// Shutdown flushes pending exposures and stops the background loops.
// Using any method is undefined after Shutdown has been called.
func Shutdown() {
	if !IsInitialized() {
		return
	}
	instance.Shutdown()
}

// For tests only, so the shared instance can be cleared. Not thread safe.
func shutdownAndClearInstance() {
	Shutdown()
	instance = nil
}

func mustInstance(method string) *Client {
	if !IsInitialized() {
		panic(fmt.Errorf("must Initialize() statsig before calling %s", method))
	}
	return instance
}
