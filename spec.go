package statsig

import (
	"encoding/json"
	"strings"
)

const (
	featureGateType   = "feature_gate"
	dynamicConfigType = "dynamic_config"
)

type configSpec struct {
	Name         string          `json:"name"`
	Type         string          `json:"type"`
	Salt         string          `json:"salt"`
	Enabled      bool            `json:"enabled"`
	Rules        []configRule    `json:"rules"`
	DefaultValue json.RawMessage `json:"defaultValue"`
	IDType       string          `json:"idType"`
}

func (c configSpec) isFeatureGate() bool {
	return strings.ToLower(c.Type) == featureGateType
}

func (c configSpec) isDynamicConfig() bool {
	return strings.ToLower(c.Type) == dynamicConfigType
}

// configValue returns v for dynamic configs and nothing for gates and
// unknown spec types, which carry no JSON payload.
func (c configSpec) configValue(v json.RawMessage) json.RawMessage {
	if c.isDynamicConfig() {
		return v
	}
	return nil
}

type configRule struct {
	Name           string            `json:"name"`
	ID             string            `json:"id"`
	GroupName      string            `json:"groupName,omitempty"`
	Salt           string            `json:"salt"`
	PassPercentage float64           `json:"passPercentage"`
	Conditions     []configCondition `json:"conditions"`
	ReturnValue    json.RawMessage   `json:"returnValue"`
	IDType         string            `json:"idType"`
}

type configCondition struct {
	Type             string                 `json:"type"`
	Operator         string                 `json:"operator"`
	Field            string                 `json:"field"`
	TargetValue      interface{}            `json:"targetValue"`
	AdditionalValues map[string]interface{} `json:"additionalValues"`
	IDType           string                 `json:"idType"`
}

type downloadConfigSpecsResponse struct {
	HasUpdates     bool         `json:"has_updates"`
	Time           int64        `json:"time"`
	FeatureGates   []configSpec `json:"feature_gates"`
	DynamicConfigs []configSpec `json:"dynamic_configs"`
	LayerConfigs   []configSpec `json:"layer_configs"`
}
