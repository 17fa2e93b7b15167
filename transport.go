package statsig

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"
)

const (
	defaultAPIURL    = "https://api.statsig.com/v1"
	defaultCDNURL    = "https://api.statsigcdn.com/v1"
	defaultEventsURL = "https://events.statsigapi.net/v1"

	sdkType    = "go-lite-server"
	sdkVersion = "0.1.0"

	// timeoutEnvVar overrides the per-request timeout, in milliseconds.
	timeoutEnvVar         = "STATSIG_TIMEOUT_MS"
	defaultRequestTimeout = 3000 * time.Millisecond

	// Fetching specs gets its own ceiling and retry budget; nothing else
	// is retried.
	specsRequestTimeout = 10 * time.Second
	specsFetchAttempts  = 5
)

type transport struct {
	apiURL    string
	cdnURL    string
	eventsURL string
	sdkKey    string
	sessionID string
	client    *http.Client
	// specsClient has no client-level timeout; the specs request context
	// is the only deadline, so the catalog fetch always gets its full 10s
	// regardless of the per-request timeout override.
	specsClient *http.Client
}

func newTransport(sdkKey string, options *Options) *transport {
	pool := &http.Transport{
		IdleConnTimeout: 60 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}
	return &transport{
		apiURL:      defaultString(options.APIURL, defaultAPIURL),
		cdnURL:      defaultString(options.CDNURL, defaultCDNURL),
		eventsURL:   defaultString(options.EventsURL, defaultEventsURL),
		sdkKey:      sdkKey,
		sessionID:   uuid.NewString(),
		client:      &http.Client{Timeout: requestTimeout(), Transport: pool},
		specsClient: &http.Client{Transport: pool},
	}
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func requestTimeout() time.Duration {
	if v := os.Getenv(timeoutEnvVar); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultRequestTimeout
}

// downloadConfigSpecs fetches the rule catalog, retrying transient failures
// with jittered exponential backoff.
func (t *transport) downloadConfigSpecs(sinceTime int64) (downloadConfigSpecsResponse, error) {
	url := fmt.Sprintf("%s/download_config_specs/%s.json?sinceTime=%d", t.cdnURL, t.sdkKey, sinceTime)
	b := &backoff.Backoff{Min: time.Millisecond, Max: 10 * time.Second, Factor: 5, Jitter: true}

	var res downloadConfigSpecsResponse
	var err error
	for attempt := 0; attempt < specsFetchAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(b.Duration())
		}
		res, err = t.getConfigSpecsOnce(url)
		if err == nil {
			return res, nil
		}
		if !isRetryable(err) {
			break
		}
	}
	return downloadConfigSpecsResponse{}, errors.Wrap(err, "downloading config specs")
}

func (t *transport) getConfigSpecsOnce(url string) (downloadConfigSpecsResponse, error) {
	var res downloadConfigSpecsResponse
	ctx, cancel := context.WithTimeout(context.Background(), specsRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return res, err
	}
	return res, t.doWith(t.specsClient, req, &res)
}

type checkGateInput struct {
	User     User   `json:"user"`
	GateName string `json:"gateName"`
}

type checkGateResponse struct {
	Name  string `json:"name"`
	Value bool   `json:"value"`
}

func (t *transport) checkGate(user User, gate string) (checkGateResponse, error) {
	var res checkGateResponse
	err := t.postJSON(t.apiURL+"/check_gate", checkGateInput{User: user, GateName: gate}, &res)
	return res, err
}

type getConfigInput struct {
	User       User   `json:"user"`
	ConfigName string `json:"configName"`
}

type getConfigResponse struct {
	Name      string                 `json:"name"`
	Value     map[string]interface{} `json:"value"`
	Group     string                 `json:"group"`
	GroupName string                 `json:"groupName"`
	RuleID    string                 `json:"ruleId"`
}

func (t *transport) getConfig(user User, config string) (getConfigResponse, error) {
	var res getConfigResponse
	err := t.postJSON(t.apiURL+"/get_config", getConfigInput{User: user, ConfigName: config}, &res)
	return res, err
}

type logEventsInput struct {
	Events     []Event `json:"events"`
	SDKType    string  `json:"sdkType"`
	SDKVersion string  `json:"sdkVersion"`
}

func (t *transport) logEvents(events []Event) error {
	in := logEventsInput{Events: events, SDKType: sdkType, SDKVersion: sdkVersion}
	return t.postJSON(t.eventsURL+"/log_event", in, nil)
}

type experimentExposure struct {
	User               User                `json:"user"`
	ExperimentName     string              `json:"experimentName"`
	Group              string              `json:"group"`
	RuleID             string              `json:"ruleId"`
	SecondaryExposures []SecondaryExposure `json:"secondaryExposures"`
}

type logCustomExposureInput struct {
	Exposures  []experimentExposure `json:"exposures"`
	SDKType    string               `json:"sdkType"`
	SDKVersion string               `json:"sdkVersion"`
}

func (t *transport) logCustomExposure(exposure experimentExposure) error {
	in := logCustomExposureInput{
		Exposures:  []experimentExposure{exposure},
		SDKType:    sdkType,
		SDKVersion: sdkVersion,
	}
	return t.postJSON(t.eventsURL+"/log_custom_exposure", in, nil)
}

func (t *transport) postJSON(url string, in interface{}, out interface{}) error {
	body, err := jsonAPI.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	return t.do(req, out)
}

func (t *transport) do(req *http.Request, out interface{}) error {
	return t.doWith(t.client, req, out)
}

func (t *transport) doWith(client *http.Client, req *http.Request, out interface{}) error {
	req.Header.Set("STATSIG-API-KEY", t.sdkKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("STATSIG-SERVER-SESSION-ID", t.sessionID)

	res, err := client.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return &TransportError{
			RequestMetadata: &RequestMetadata{StatusCode: res.StatusCode, Endpoint: req.URL.Path},
			Err:             fmt.Errorf("http response error code: %d", res.StatusCode),
		}
	}
	if out == nil {
		return nil
	}
	if err := jsonAPI.NewDecoder(res.Body).Decode(out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// isRetryable reports whether a specs fetch failure is worth another
// attempt: network errors and the usual transient statuses.
func isRetryable(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.RequestMetadata == nil {
		return true
	}
	switch te.RequestMetadata.StatusCode {
	case 408, 500, 502, 503, 504, 522, 524, 599:
		return true
	default:
		return false
	}
}
