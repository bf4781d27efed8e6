package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// RuleType identifies one of the closed set of transformation rule kinds.
type RuleType string

const (
	RuleRemoveDuplicates  RuleType = "remove_duplicates"
	RuleHandleNulls       RuleType = "handle_nulls"
	RuleNormalizeText     RuleType = "normalize_text"
	RuleValidateDataTypes RuleType = "validate_data_types"
	RuleFilterRows        RuleType = "filter_rows"
	RuleAggregateData     RuleType = "aggregate_data"
)

// String returns the string representation of the RuleType.
func (t RuleType) String() string {
	return string(t)
}

// IsValid checks whether the RuleType belongs to the closed rule set.
func (t RuleType) IsValid() bool {
	switch t {
	case RuleRemoveDuplicates, RuleHandleNulls, RuleNormalizeText,
		RuleValidateDataTypes, RuleFilterRows, RuleAggregateData:
		return true
	default:
		return false
	}
}

// TransformationRule is one step in a job's ordered pipeline. Parameters are
// a structured map whose schema depends on the rule type; they are decoded
// and validated by the rule engine before the rule is appended to a job.
type TransformationRule struct {
	RuleType    RuleType `json:"rule_type"`
	Parameters  Metadata `json:"parameters"`
	Description string   `json:"description,omitempty"`
}

// RuleList is the ordered, order-significant list of rules attached to a job.
type RuleList []TransformationRule

// Copy creates a copy of the rule list. Parameter maps are copied shallowly.
func (rl RuleList) Copy() RuleList {
	cloned := make(RuleList, len(rl))
	for i, rule := range rl {
		cloned[i] = rule
		cloned[i].Parameters = rule.Parameters.Copy()
	}
	return cloned
}

// Value implements the `driver.Valuer` interface, converting the RuleList to
// a JSON string.
func (rl RuleList) Value() (driver.Value, error) {
	if rl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(rl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to
// a RuleList.
func (rl *RuleList) Scan(value interface{}) error {
	if value == nil {
		*rl = make(RuleList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for RuleList: %T", value)
	}

	if len(b) == 0 {
		*rl = make(RuleList, 0)
		return nil
	}
	if err := json.Unmarshal(b, rl); err != nil {
		return fmt.Errorf("failed to unmarshal RuleList JSON: %w", err)
	}
	return nil
}

// RuleTypes returns the rule type names in pipeline order, for lineage
// metadata.
func (rl RuleList) RuleTypes() []string {
	types := make([]string, len(rl))
	for i, rule := range rl {
		types[i] = rule.RuleType.String()
	}
	return types
}
