package statsig

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Client evaluates feature gates and dynamic configs against a locally
// cached rule catalog, refreshing the catalog and shipping exposure events
// in the background. Checks the local evaluator cannot reproduce fall back
// to the API one call at a time.
type Client struct {
	options   *Options
	transport *transport
	store     *store
	evaluator *evaluator
	logger    *logger
	tick      *time.Ticker
	done      chan struct{}
	stopOnce  sync.Once
}

// NewClient builds a client for the given SDK key. Unless the cache is
// disabled it fetches the initial catalog synchronously; a failure there is
// fatal and returned to the caller.
func NewClient(sdkKey string, options *Options) (*Client, error) {
	if sdkKey == "" {
		return nil, errors.New("statsig: an SDK key is required")
	}
	if options == nil {
		options = &Options{}
	}

	c := &Client{
		options:   options,
		transport: newTransport(sdkKey, options),
	}
	if options.DisableCache {
		return c, nil
	}

	c.store = newStore()
	c.evaluator = newEvaluator(c.store)
	specs, err := c.transport.downloadConfigSpecs(0)
	if err != nil {
		return nil, errors.Wrap(err, "fetching initial config specs")
	}
	if specs.HasUpdates {
		c.store.replaceAll(specs)
	}

	c.logger = newLogger(c.transport, options)
	c.tick = time.NewTicker(options.syncInterval())
	c.done = make(chan struct{})
	go c.pollForChanges()
	return c, nil
}

func (c *Client) pollForChanges() {
	for {
		select {
		case <-c.done:
			return
		case <-c.tick.C:
			specs, err := c.transport.downloadConfigSpecs(c.store.lastUpdateTime())
			if err != nil {
				log.WithError(err).Error("config sync failed, keeping current catalog")
				continue
			}
			if specs.HasUpdates {
				c.store.replaceAll(specs)
				log.WithField("time", specs.Time).Debug("config specs updated")
			}
		}
	}
}

// CheckGate reports whether the named gate passes for the user.
func (c *Client) CheckGate(user User, gate string) (bool, error) {
	if user.UserID == "" {
		return false, ErrEmptyUserID
	}
	if c.options.DisableCache {
		res, err := c.transport.checkGate(user, gate)
		return res.Value, err
	}

	res := c.evaluator.checkGate(user, gate)
	if res.FetchFromServer {
		// The server logs its own exposure for this check.
		srv, err := c.transport.checkGate(user, gate)
		return srv.Value, err
	}
	c.logger.logGateExposure(user, gate, res)
	return res.Pass, nil
}

// GetDynamicConfig decodes the config value the user receives into out.
func (c *Client) GetDynamicConfig(user User, config string, out interface{}) error {
	if user.UserID == "" {
		return ErrEmptyUserID
	}
	if c.options.DisableCache {
		srv, err := c.transport.getConfig(user, config)
		if err != nil {
			return err
		}
		return decodeValue(srv.Value, out)
	}

	res := c.evaluator.getConfig(user, config)
	if res.FetchFromServer {
		srv, err := c.transport.getConfig(user, config)
		if err != nil {
			return err
		}
		return decodeValue(srv.Value, out)
	}
	c.logger.logConfigExposure(user, config, res)
	return decodeRaw(res.ConfigValue, out)
}

// GetConfig returns the config value together with the metadata of the
// matched group.
func (c *Client) GetConfig(user User, config string) (*DynamicConfig, error) {
	if user.UserID == "" {
		return nil, ErrEmptyUserID
	}
	if c.options.DisableCache {
		return c.fetchConfigFromServer(user, config)
	}

	res := c.evaluator.getConfig(user, config)
	if res.FetchFromServer {
		return c.fetchConfigFromServer(user, config)
	}
	c.logger.logConfigExposure(user, config, res)
	return newConfig(config, rawToMap(res.ConfigValue), res.RuleID, res.Group, res.GroupName), nil
}

// GetExperiment returns the experiment value plus the secondary exposures
// collected during evaluation. The exposure is reported through the
// dedicated log_custom_exposure endpoint for holdout-aware tracking; a
// failure there is logged and does not fail the call.
func (c *Client) GetExperiment(user User, experiment string) (*Experiment, error) {
	if user.UserID == "" {
		return nil, ErrEmptyUserID
	}
	if !c.options.DisableCache {
		res := c.evaluator.getConfig(user, experiment)
		if !res.FetchFromServer {
			value := rawToMap(res.ConfigValue)
			if err := c.transport.logCustomExposure(experimentExposure{
				User:               user,
				ExperimentName:     experiment,
				Group:              res.Group,
				RuleID:             res.RuleID,
				SecondaryExposures: res.SecondaryExposures,
			}); err != nil {
				log.WithError(err).WithField("experiment", experiment).
					Error("failed to log experiment exposure")
			}
			return &Experiment{
				DynamicConfig:      *newConfig(experiment, value, res.RuleID, res.Group, res.GroupName),
				SecondaryExposures: res.SecondaryExposures,
			}, nil
		}
	}
	return c.fetchExperimentFromServer(user, experiment)
}

// GetExperimentWithoutLocalEvaluation always asks the control plane, which
// logs the exposure on its side.
func (c *Client) GetExperimentWithoutLocalEvaluation(user User, experiment string) (*Experiment, error) {
	if user.UserID == "" {
		return nil, ErrEmptyUserID
	}
	return c.fetchExperimentFromServer(user, experiment)
}

// LogEvent ships a custom event immediately.
func (c *Client) LogEvent(event Event) error {
	if event.EventName == "" {
		return errors.New("statsig: an event name is required")
	}
	if event.Time == "" {
		event.Time = nowUnixString()
	}
	return c.transport.logEvents([]Event{event})
}

// Shutdown stops the background loops and flushes the exposure queue once.
// Using the client after Shutdown is undefined.
func (c *Client) Shutdown() {
	c.stopOnce.Do(func() {
		if c.tick != nil {
			c.tick.Stop()
			close(c.done)
		}
		if c.logger != nil {
			c.logger.shutdown()
		}
	})
}

func (c *Client) fetchConfigFromServer(user User, config string) (*DynamicConfig, error) {
	srv, err := c.transport.getConfig(user, config)
	if err != nil {
		return nil, err
	}
	return newConfig(config, srv.Value, srv.RuleID, srv.Group, srv.GroupName), nil
}

func (c *Client) fetchExperimentFromServer(user User, experiment string) (*Experiment, error) {
	cfg, err := c.fetchConfigFromServer(user, experiment)
	if err != nil {
		return nil, err
	}
	return &Experiment{DynamicConfig: *cfg}, nil
}

func decodeValue(value map[string]interface{}, out interface{}) error {
	raw, err := jsonAPI.Marshal(value)
	if err != nil {
		return err
	}
	return decodeRaw(raw, out)
}

// decodeRaw leaves out untouched for an absent value; an unknown config
// name is a default result, not an error.
func decodeRaw(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := jsonAPI.Unmarshal(raw, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// rawToMap is lenient: a value that is not a JSON object yields an empty
// map rather than an error, matching the map-based accessors.
func rawToMap(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := jsonAPI.Unmarshal(raw, &m); err != nil {
		return map[string]interface{}{}
	}
	return m
}
