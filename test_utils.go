package statsig

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// testServer fakes the control plane: catalog downloads, per-check
// fallbacks, and both event endpoints. All recorded state is mutex-guarded
// so tests can poke at it while background loops run.
type testServer struct {
	*httptest.Server
	mu sync.Mutex

	specs                downloadConfigSpecsResponse
	noUpdateOnSync       bool
	dcsStatus            int
	logEventStatus       int
	customExposureStatus int
	gateValue            bool
	configValue          map[string]interface{}

	dcsCount        int
	checkGateCount  int
	getConfigCount  int
	logEventCount   int
	sinceTimes      []string
	logEventBatches [][]Event
	customExposures []experimentExposure
}

func newTestServer(t *testing.T) *testServer {
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) handle(res http.ResponseWriter, req *http.Request) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	switch {
	case strings.Contains(req.URL.Path, "download_config_specs"):
		ts.dcsCount++
		since := req.URL.Query().Get("sinceTime")
		ts.sinceTimes = append(ts.sinceTimes, since)
		if ts.dcsStatus != 0 {
			res.WriteHeader(ts.dcsStatus)
			return
		}
		specs := ts.specs
		if ts.noUpdateOnSync && since != "0" {
			specs = downloadConfigSpecsResponse{}
		}
		writeJSON(res, specs)
	case strings.Contains(req.URL.Path, "check_gate"):
		ts.checkGateCount++
		var in checkGateInput
		_ = jsonAPI.NewDecoder(req.Body).Decode(&in)
		writeJSON(res, checkGateResponse{Name: in.GateName, Value: ts.gateValue})
	case strings.Contains(req.URL.Path, "get_config"):
		ts.getConfigCount++
		var in getConfigInput
		_ = jsonAPI.NewDecoder(req.Body).Decode(&in)
		writeJSON(res, getConfigResponse{
			Name:      in.ConfigName,
			Value:     ts.configValue,
			Group:     "serverGroup",
			GroupName: "serverGroupName",
			RuleID:    "serverRule",
		})
	case strings.Contains(req.URL.Path, "log_custom_exposure"):
		if ts.customExposureStatus != 0 {
			res.WriteHeader(ts.customExposureStatus)
			return
		}
		var in logCustomExposureInput
		_ = jsonAPI.NewDecoder(req.Body).Decode(&in)
		ts.customExposures = append(ts.customExposures, in.Exposures...)
		writeJSON(res, struct{}{})
	case strings.Contains(req.URL.Path, "log_event"):
		ts.logEventCount++
		if ts.logEventStatus != 0 {
			res.WriteHeader(ts.logEventStatus)
			return
		}
		var in logEventsInput
		_ = jsonAPI.NewDecoder(req.Body).Decode(&in)
		ts.logEventBatches = append(ts.logEventBatches, in.Events)
		writeJSON(res, struct{}{})
	}
}

func writeJSON(res http.ResponseWriter, v interface{}) {
	body, _ := jsonAPI.Marshal(v)
	_, _ = res.Write(body)
}

// options points every endpoint at the test server, with background
// intervals long enough to stay quiet unless a test shortens them.
func (ts *testServer) options(mod func(*Options)) *Options {
	o := &Options{
		APIURL:             ts.URL,
		CDNURL:             ts.URL,
		EventsURL:          ts.URL,
		ConfigSyncInterval: time.Hour,
		LoggingInterval:    time.Hour,
	}
	if mod != nil {
		mod(o)
	}
	return o
}

func (ts *testServer) setSpecs(specs downloadConfigSpecsResponse) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.specs = specs
}

func (ts *testServer) batches() [][]Event {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([][]Event, len(ts.logEventBatches))
	copy(out, ts.logEventBatches)
	return out
}

func (ts *testServer) allEvents() []Event {
	var all []Event
	for _, b := range ts.batches() {
		all = append(all, b...)
	}
	return all
}

func (ts *testServer) exposures() []experimentExposure {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]experimentExposure, len(ts.customExposures))
	copy(out, ts.customExposures)
	return out
}

func (ts *testServer) counts() (dcs, gates, configs int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.dcsCount, ts.checkGateCount, ts.getConfigCount
}

func (ts *testServer) sinceTimeParams() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]string, len(ts.sinceTimes))
	copy(out, ts.sinceTimes)
	return out
}

func (ts *testServer) logEventAttempts() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.logEventCount
}

func (ts *testServer) setLogEventStatus(status int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.logEventStatus = status
}

func testUser() User {
	return User{UserID: "user_id", Environment: Environment{Tier: "production"}}
}

func makeGate(name string, rules ...configRule) configSpec {
	return configSpec{
		Name:         name,
		Type:         featureGateType,
		Salt:         name + "_salt",
		Enabled:      true,
		DefaultValue: json.RawMessage("false"),
		IDType:       "userID",
		Rules:        rules,
	}
}

func makeConfig(name string, defaultValue string, rules ...configRule) configSpec {
	return configSpec{
		Name:         name,
		Type:         dynamicConfigType,
		Salt:         name + "_salt",
		Enabled:      true,
		DefaultValue: json.RawMessage(defaultValue),
		IDType:       "userID",
		Rules:        rules,
	}
}

func makeRule(id string, passPercentage float64, conditions ...configCondition) configRule {
	return configRule{
		Name:           id + "_group",
		ID:             id,
		Salt:           id + "_salt",
		PassPercentage: passPercentage,
		IDType:         "userID",
		ReturnValue:    json.RawMessage(`{"from":"rule"}`),
		Conditions:     conditions,
	}
}

func publicCondition() configCondition {
	return configCondition{Type: "public"}
}

func catalogOf(gates []configSpec, configs []configSpec) downloadConfigSpecsResponse {
	return downloadConfigSpecsResponse{
		HasUpdates:     true,
		Time:           1,
		FeatureGates:   gates,
		DynamicConfigs: configs,
	}
}

func evaluatorForSpecs(gates []configSpec, configs []configSpec) *evaluator {
	st := newStore()
	st.replaceAll(catalogOf(gates, configs))
	return newEvaluator(st)
}
