package statsig

const (
	gateExposureEventName   = "statsig::gate_exposure"
	configExposureEventName = "statsig::config_exposure"
)

// Event is a telemetry record shipped to the log_event endpoint. Time is
// unix seconds as a decimal string.
type Event struct {
	EventName string            `json:"eventName"`
	Value     string            `json:"value"`
	Time      string            `json:"time"`
	User      User              `json:"user"`
	Metadata  map[string]string `json:"metadata"`
}

// DynamicConfig is the parameterized value a user received, together with
// the metadata of the group that matched.
type DynamicConfig struct {
	Name      string                 `json:"name"`
	Value     map[string]interface{} `json:"value"`
	RuleID    string                 `json:"ruleId"`
	Group     string                 `json:"group"`
	GroupName string                 `json:"groupName"`
}

// Experiment is a DynamicConfig plus the secondary exposures collected
// while evaluating it.
type Experiment struct {
	DynamicConfig
	SecondaryExposures []SecondaryExposure `json:"secondaryExposures"`
}

func newConfig(name string, value map[string]interface{}, ruleID, group, groupName string) *DynamicConfig {
	if value == nil {
		value = make(map[string]interface{})
	}
	return &DynamicConfig{
		Name:      name,
		Value:     value,
		RuleID:    ruleID,
		Group:     group,
		GroupName: groupName,
	}
}

// GetString returns the string at the given key, or fallback if the key is
// missing or not a string.
func (d *DynamicConfig) GetString(key string, fallback string) string {
	if v, ok := d.Value[key].(string); ok {
		return v
	}
	return fallback
}

// GetNumber returns the float64 at the given key, or fallback if the key is
// missing or not a number.
func (d *DynamicConfig) GetNumber(key string, fallback float64) float64 {
	if v, ok := d.Value[key].(float64); ok {
		return v
	}
	return fallback
}

// GetBool returns the bool at the given key, or fallback if the key is
// missing or not a bool.
func (d *DynamicConfig) GetBool(key string, fallback bool) bool {
	if v, ok := d.Value[key].(bool); ok {
		return v
	}
	return fallback
}

// GetSlice returns the slice at the given key, or fallback if the key is
// missing or not a slice.
func (d *DynamicConfig) GetSlice(key string, fallback []interface{}) []interface{} {
	if v, ok := d.Value[key].([]interface{}); ok {
		return v
	}
	return fallback
}

// GetMap returns the map at the given key, or fallback if the key is
// missing or not a map.
func (d *DynamicConfig) GetMap(key string, fallback map[string]interface{}) map[string]interface{} {
	if v, ok := d.Value[key].(map[string]interface{}); ok {
		return v
	}
	return fallback
}
