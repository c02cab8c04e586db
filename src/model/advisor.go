package model

import (
	"encoding/json"
	"fmt"
)

// StrategySuggestion is the structured configuration proposal returned by
// the advisory service. Params carries only the strategy fields the advisor
// wants to change; unknown keys are ignored during merge.
type StrategySuggestion struct {
	StrategyName string          `json:"strategyName"`
	Params       json.RawMessage `json:"params"`
	Notes        string          `json:"notes"`
	Confidence   float64         `json:"confidence"`
}

// Validate rejects suggestions that miss required fields or carry values
// outside the documented schema. A rejected suggestion never reaches the
// config merge.
func (s StrategySuggestion) Validate() error {
	if s.StrategyName == "" {
		return fmt.Errorf("suggestion missing strategyName")
	}
	if len(s.Params) == 0 {
		return fmt.Errorf("suggestion missing params")
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(s.Params, &params); err != nil {
		return fmt.Errorf("suggestion params is not a JSON object: %w", err)
	}

	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("suggestion confidence %v outside [0,1]", s.Confidence)
	}
	return nil
}
