package statsig

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, ts *testServer, mod func(*Options)) *Client {
	t.Helper()
	c, err := NewClient("secret-key", ts.options(mod))
	require.NoError(t, err)
	t.Cleanup(c.Shutdown)
	return c
}

func TestNewClientRequiresSDKKey(t *testing.T) {
	_, err := NewClient("", nil)
	require.Error(t, err)
}

func TestNewClientFailsWhenInitialFetchFails(t *testing.T) {
	ts := newTestServer(t)
	// 400 is not retryable, so the constructor fails fast.
	ts.dcsStatus = 400

	_, err := NewClient("secret-key", ts.options(nil))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNetworkRequest))
}

func TestClientCheckGate(t *testing.T) {
	ts := newTestServer(t)
	ts.setSpecs(catalogOf([]configSpec{
		makeGate("on_gate", makeRule("rule_on", 100, publicCondition())),
		makeGate("off_gate", makeRule("rule_off", 0, publicCondition())),
	}, nil))
	c := newTestClient(t, ts, nil)
	user := testUser()

	pass, err := c.CheckGate(user, "on_gate")
	require.NoError(t, err)
	assert.True(t, pass)

	pass, err = c.CheckGate(user, "off_gate")
	require.NoError(t, err)
	assert.False(t, pass)

	pass, err = c.CheckGate(user, "unknown_gate")
	require.NoError(t, err)
	assert.False(t, pass)

	c.Shutdown()
	events := ts.allEvents()
	require.Len(t, events, 3)
	assert.Equal(t, "statsig::gate_exposure", events[0].EventName)
	assert.Equal(t, "rule_on", events[0].Metadata["ruleID"])
	assert.Equal(t, "true", events[0].Metadata["gateValue"])
	assert.Equal(t, "rule_off", events[1].Metadata["ruleID"])
	assert.Equal(t, "false", events[1].Metadata["gateValue"])
	assert.Equal(t, "default", events[2].Metadata["ruleID"])

	dcs, gates, _ := ts.counts()
	assert.Equal(t, 1, dcs)
	assert.Equal(t, 0, gates, "no server fallback for local checks")
}

func TestClientRejectsEmptyUserID(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, nil)
	user := User{}

	_, err := c.CheckGate(user, "g")
	assert.True(t, errors.Is(err, ErrEmptyUserID))
	err = c.GetDynamicConfig(user, "c", &struct{}{})
	assert.True(t, errors.Is(err, ErrEmptyUserID))
	_, err = c.GetConfig(user, "c")
	assert.True(t, errors.Is(err, ErrEmptyUserID))
	_, err = c.GetExperiment(user, "e")
	assert.True(t, errors.Is(err, ErrEmptyUserID))
	_, err = c.GetExperimentWithoutLocalEvaluation(user, "e")
	assert.True(t, errors.Is(err, ErrEmptyUserID))
}

func TestClientGetDynamicConfig(t *testing.T) {
	rule := makeRule("rule_1", 100, configCondition{
		Type: "user_field", Field: "email", Operator: "any",
		TargetValue: []interface{}{"u1@example.com"},
	})
	ts := newTestServer(t)
	ts.setSpecs(catalogOf(nil, []configSpec{makeConfig("cfg", `{"from":"default"}`, rule)}))
	c := newTestClient(t, ts, nil)

	type out struct {
		From string `json:"from"`
	}

	matched := testUser()
	matched.Email = "u1@example.com"
	var v out
	require.NoError(t, c.GetDynamicConfig(matched, "cfg", &v))
	assert.Equal(t, "rule", v.From)

	v = out{}
	require.NoError(t, c.GetDynamicConfig(testUser(), "cfg", &v))
	assert.Equal(t, "default", v.From)

	// Unknown config names leave the output untouched.
	v = out{From: "seed"}
	require.NoError(t, c.GetDynamicConfig(testUser(), "unknown", &v))
	assert.Equal(t, "seed", v.From)
}

func TestClientGetConfigMetadata(t *testing.T) {
	ts := newTestServer(t)
	ts.setSpecs(catalogOf(nil, []configSpec{
		makeConfig("cfg", `{"from":"default"}`, makeRule("rule_1", 100, publicCondition())),
	}))
	c := newTestClient(t, ts, nil)

	cfg, err := c.GetConfig(testUser(), "cfg")
	require.NoError(t, err)
	assert.Equal(t, "cfg", cfg.Name)
	assert.Equal(t, "rule_1", cfg.RuleID)
	assert.Equal(t, "rule_1_group", cfg.Group)
	assert.Equal(t, "rule", cfg.GetString("from", ""))

	c.Shutdown()
	events := ts.allEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "statsig::config_exposure", events[0].EventName)
	assert.Equal(t, map[string]string{"config": "cfg", "ruleID": "rule_1"}, events[0].Metadata)
}

func TestClientGetConfigNonObjectValue(t *testing.T) {
	ts := newTestServer(t)
	ts.setSpecs(catalogOf(nil, []configSpec{makeConfig("scalar_cfg", `"just a string"`)}))
	c := newTestClient(t, ts, nil)

	cfg, err := c.GetConfig(testUser(), "scalar_cfg")
	require.NoError(t, err)
	assert.Empty(t, cfg.Value)
	assert.Equal(t, "fallback", cfg.GetString("anything", "fallback"))

	exp, err := c.GetExperiment(testUser(), "scalar_cfg")
	require.NoError(t, err)
	assert.Empty(t, exp.Value)
}

func TestClientServerFallback(t *testing.T) {
	// A segment-list condition cannot be evaluated locally; the check goes
	// to the API and no local exposure is logged for it.
	rule := makeRule("rule_1", 100, configCondition{
		Type: "unit_id", Operator: "in_segment_list", TargetValue: "seg_1",
	})
	ts := newTestServer(t)
	ts.gateValue = true
	ts.configValue = map[string]interface{}{"from": "server"}
	ts.setSpecs(catalogOf(
		[]configSpec{makeGate("seg_gate", rule)},
		[]configSpec{makeConfig("seg_cfg", `{}`, rule)},
	))
	c := newTestClient(t, ts, nil)

	pass, err := c.CheckGate(testUser(), "seg_gate")
	require.NoError(t, err)
	assert.True(t, pass)

	cfg, err := c.GetConfig(testUser(), "seg_cfg")
	require.NoError(t, err)
	assert.Equal(t, "serverRule", cfg.RuleID)
	assert.Equal(t, "server", cfg.GetString("from", ""))

	c.Shutdown()
	assert.Empty(t, ts.allEvents())
	_, gates, configs := ts.counts()
	assert.Equal(t, 1, gates)
	assert.Equal(t, 1, configs)
}

func TestClientThresholdFlush(t *testing.T) {
	ts := newTestServer(t)
	ts.setSpecs(catalogOf([]configSpec{
		makeGate("g", makeRule("rule_1", 100, publicCondition())),
	}, nil))
	c := newTestClient(t, ts, func(o *Options) {
		o.LoggingMaxBufferSize = 3
	})

	for i := 0; i < 3; i++ {
		_, err := c.CheckGate(testUser(), "g")
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool {
		return len(ts.allEvents()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	_, err := c.CheckGate(testUser(), "g")
	require.NoError(t, err)
	c.Shutdown()
	assert.Len(t, ts.allEvents(), 4)
}

func TestClientConfigRefresh(t *testing.T) {
	ts := newTestServer(t)
	ts.setSpecs(catalogOf([]configSpec{
		makeGate("g", makeRule("rule_1", 100, publicCondition())),
	}, nil))
	c := newTestClient(t, ts, func(o *Options) {
		o.ConfigSyncInterval = 20 * time.Millisecond
	})

	pass, err := c.CheckGate(testUser(), "g")
	require.NoError(t, err)
	require.True(t, pass)

	next := catalogOf([]configSpec{
		makeGate("g", makeRule("rule_1", 0, publicCondition())),
	}, nil)
	next.Time = 2
	ts.setSpecs(next)

	require.Eventually(t, func() bool {
		pass, err := c.CheckGate(testUser(), "g")
		return err == nil && !pass
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), c.store.lastUpdateTime())
}

func TestClientKeepsCatalogWithoutUpdates(t *testing.T) {
	ts := newTestServer(t)
	ts.noUpdateOnSync = true
	ts.setSpecs(catalogOf([]configSpec{
		makeGate("g", makeRule("rule_1", 100, publicCondition())),
	}, nil))
	c := newTestClient(t, ts, func(o *Options) {
		o.ConfigSyncInterval = 10 * time.Millisecond
	})

	require.Eventually(t, func() bool {
		dcs, _, _ := ts.counts()
		return dcs >= 3
	}, 2*time.Second, 5*time.Millisecond)

	pass, err := c.CheckGate(testUser(), "g")
	require.NoError(t, err)
	assert.True(t, pass)
	assert.Equal(t, int64(1), c.store.lastUpdateTime())
}

func TestClientDisableCache(t *testing.T) {
	ts := newTestServer(t)
	ts.gateValue = true
	ts.configValue = map[string]interface{}{"from": "server"}
	c := newTestClient(t, ts, func(o *Options) {
		o.DisableCache = true
	})

	pass, err := c.CheckGate(testUser(), "g")
	require.NoError(t, err)
	assert.True(t, pass)

	cfg, err := c.GetConfig(testUser(), "cfg")
	require.NoError(t, err)
	assert.Equal(t, "serverRule", cfg.RuleID)
	assert.Equal(t, "server", cfg.GetString("from", ""))

	var v struct {
		From string `json:"from"`
	}
	require.NoError(t, c.GetDynamicConfig(testUser(), "cfg", &v))
	assert.Equal(t, "server", v.From)

	exp, err := c.GetExperiment(testUser(), "exp")
	require.NoError(t, err)
	assert.Equal(t, "serverRule", exp.RuleID)

	dcs, gates, configs := ts.counts()
	assert.Equal(t, 0, dcs, "catalog is never fetched")
	assert.Equal(t, 1, gates)
	assert.Equal(t, 3, configs)
	assert.Empty(t, ts.allEvents(), "the server logs its own exposures")
	assert.Empty(t, ts.exposures())
}

func TestClientGetExperiment(t *testing.T) {
	ts := newTestServer(t)
	ts.setSpecs(catalogOf([]configSpec{
		makeGate("holdout", makeRule("h_rule", 100, publicCondition())),
	}, []configSpec{
		makeConfig("exp", `{"variant":"control"}`,
			makeRule("rule_1", 100, configCondition{Type: "pass_gate", TargetValue: "holdout"})),
	}))
	c := newTestClient(t, ts, nil)

	exp, err := c.GetExperiment(testUser(), "exp")
	require.NoError(t, err)
	assert.Equal(t, "rule_1", exp.RuleID)
	assert.Equal(t, "rule", exp.GetString("from", ""))
	require.Len(t, exp.SecondaryExposures, 1)
	assert.Equal(t, "holdout", exp.SecondaryExposures[0].Gate)

	// The exposure goes through the dedicated endpoint, not the event queue.
	exposures := ts.exposures()
	require.Len(t, exposures, 1)
	assert.Equal(t, "exp", exposures[0].ExperimentName)
	assert.Equal(t, "rule_1", exposures[0].RuleID)
	assert.Equal(t, "rule_1_group", exposures[0].Group)
	require.Len(t, exposures[0].SecondaryExposures, 1)

	c.Shutdown()
	assert.Empty(t, ts.allEvents())
}

func TestClientGetExperimentExposureFailureDoesNotFailCall(t *testing.T) {
	ts := newTestServer(t)
	ts.customExposureStatus = 500
	ts.setSpecs(catalogOf(nil, []configSpec{
		makeConfig("exp", `{}`, makeRule("rule_1", 100, publicCondition())),
	}))
	c := newTestClient(t, ts, nil)

	exp, err := c.GetExperiment(testUser(), "exp")
	require.NoError(t, err)
	assert.Equal(t, "rule_1", exp.RuleID)
}

func TestClientGetExperimentWithoutLocalEvaluation(t *testing.T) {
	ts := newTestServer(t)
	ts.configValue = map[string]interface{}{"variant": "server"}
	ts.setSpecs(catalogOf(nil, []configSpec{
		makeConfig("exp", `{}`, makeRule("rule_1", 100, publicCondition())),
	}))
	c := newTestClient(t, ts, nil)

	exp, err := c.GetExperimentWithoutLocalEvaluation(testUser(), "exp")
	require.NoError(t, err)
	assert.Equal(t, "serverRule", exp.RuleID)
	assert.Equal(t, "server", exp.GetString("variant", ""))

	_, _, configs := ts.counts()
	assert.Equal(t, 1, configs)
	assert.Empty(t, ts.exposures())
}

func TestClientLogEvent(t *testing.T) {
	ts := newTestServer(t)
	c := newTestClient(t, ts, nil)

	err := c.LogEvent(Event{User: testUser()})
	require.Error(t, err, "an event name is required")

	err = c.LogEvent(Event{EventName: "purchase", Value: "9.99", User: testUser()})
	require.NoError(t, err)

	events := ts.allEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "purchase", events[0].EventName)
	assert.Equal(t, "9.99", events[0].Value)
	assert.NotEmpty(t, events[0].Time)
}

func TestClientShutdownIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	ts.setSpecs(catalogOf([]configSpec{
		makeGate("g", makeRule("rule_1", 100, publicCondition())),
	}, nil))
	c := newTestClient(t, ts, nil)

	_, err := c.CheckGate(testUser(), "g")
	require.NoError(t, err)

	c.Shutdown()
	c.Shutdown()
	assert.Len(t, ts.allEvents(), 1)
}
