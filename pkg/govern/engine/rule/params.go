package rule

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// Parameter structs, one per rule type. The untyped parameter maps arriving
// from callers are decoded into these at rule-append time, so a malformed
// rule never reaches a running pipeline.

// RemoveDuplicatesParams configures the remove_duplicates rule.
type RemoveDuplicatesParams struct {
	SubsetColumns []string `mapstructure:"subset_columns"`
	Keep          string   `mapstructure:"keep"` // "first" (default) or "last"
}

// HandleNullsParams configures the handle_nulls rule.
type HandleNullsParams struct {
	Strategy  string      `mapstructure:"strategy"` // "drop" (default), "fill", "forward_fill"
	Columns   []string    `mapstructure:"columns"`
	FillValue interface{} `mapstructure:"fill_value"`
}

// NormalizeTextParams configures the normalize_text rule.
type NormalizeTextParams struct {
	Columns    []string `mapstructure:"columns"`
	Operations []string `mapstructure:"operations"` // lower, upper, strip, remove_special_chars
}

// ValidateDataTypesParams configures the validate_data_types rule.
type ValidateDataTypesParams struct {
	TypeMappings map[string]string `mapstructure:"type_mappings"` // column -> int|float|datetime|string
}

// FilterCondition is one predicate of the filter_rows rule.
type FilterCondition struct {
	Column   string      `mapstructure:"column"`
	Operator string      `mapstructure:"operator"`
	Value    interface{} `mapstructure:"value"`
}

// FilterRowsParams configures the filter_rows rule.
type FilterRowsParams struct {
	Conditions []FilterCondition `mapstructure:"conditions"`
}

// AggregateDataParams configures the aggregate_data rule.
type AggregateDataParams struct {
	GroupBy      []string          `mapstructure:"group_by"`
	Aggregations map[string]string `mapstructure:"aggregations"` // column -> sum|count|min|max|mean
}

var validKeeps = map[string]struct{}{"": {}, "first": {}, "last": {}}

var validNullStrategies = map[string]struct{}{"": {}, "drop": {}, "fill": {}, "forward_fill": {}}

var validTextOperations = map[string]struct{}{
	"lower": {}, "upper": {}, "strip": {}, "remove_special_chars": {},
}

var validTargetTypes = map[string]struct{}{
	"int": {}, "float": {}, "datetime": {}, "string": {},
}

var validFilterOperators = map[string]struct{}{
	"equals": {}, "not_equals": {}, "greater_than": {}, "less_than": {},
	"contains": {}, "not_null": {}, "is_null": {},
}

var validAggregations = map[string]struct{}{
	"sum": {}, "count": {}, "min": {}, "max": {}, "mean": {},
}

// bindParameters decodes an untyped parameter map into the given typed
// struct, allowing weakly typed input the way the configuration layer does.
func bindParameters(parameters model.Metadata, target interface{}) error {
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return fmt.Errorf("failed to create parameter decoder: %w", err)
	}
	if err := decoder.Decode(map[string]interface{}(parameters)); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	return nil
}

// ValidateRule checks that a rule's type belongs to the closed set and its
// parameters decode into the type's schema with legal values. All
// violations are collected and reported together.
func ValidateRule(rule model.TransformationRule) error {
	if !rule.RuleType.IsValid() {
		return fmt.Errorf("unknown rule type %q", rule.RuleType)
	}

	var result *multierror.Error

	switch rule.RuleType {
	case model.RuleRemoveDuplicates:
		var params RemoveDuplicatesParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return err
		}
		if _, ok := validKeeps[params.Keep]; !ok {
			result = multierror.Append(result, fmt.Errorf("keep must be \"first\" or \"last\", got %q", params.Keep))
		}

	case model.RuleHandleNulls:
		var params HandleNullsParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return err
		}
		if _, ok := validNullStrategies[params.Strategy]; !ok {
			result = multierror.Append(result, fmt.Errorf("strategy must be one of drop, fill, forward_fill, got %q", params.Strategy))
		}
		if params.Strategy == "fill" && params.FillValue == nil {
			result = multierror.Append(result, fmt.Errorf("fill strategy requires a fill_value"))
		}

	case model.RuleNormalizeText:
		var params NormalizeTextParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return err
		}
		for _, op := range params.Operations {
			if _, ok := validTextOperations[op]; !ok {
				result = multierror.Append(result, fmt.Errorf("unknown text operation %q", op))
			}
		}

	case model.RuleValidateDataTypes:
		var params ValidateDataTypesParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return err
		}
		for column, target := range params.TypeMappings {
			if _, ok := validTargetTypes[target]; !ok {
				result = multierror.Append(result, fmt.Errorf("column %q: unknown target type %q", column, target))
			}
		}

	case model.RuleFilterRows:
		var params FilterRowsParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return err
		}
		for i, cond := range params.Conditions {
			if cond.Column == "" {
				result = multierror.Append(result, fmt.Errorf("condition %d: column is required", i))
			}
			if _, ok := validFilterOperators[cond.Operator]; !ok {
				result = multierror.Append(result, fmt.Errorf("condition %d: unknown operator %q", i, cond.Operator))
			}
		}

	case model.RuleAggregateData:
		var params AggregateDataParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return err
		}
		for column, fn := range params.Aggregations {
			if _, ok := validAggregations[fn]; !ok {
				result = multierror.Append(result, fmt.Errorf("column %q: unknown aggregation %q", column, fn))
			}
		}
	}

	return result.ErrorOrNil()
}

// ValidateRules validates an ordered rule list, reporting the index of each
// offending rule.
func ValidateRules(rules model.RuleList) error {
	var result *multierror.Error
	for i, rule := range rules {
		if err := ValidateRule(rule); err != nil {
			result = multierror.Append(result, fmt.Errorf("rule %d (%s): %w", i, rule.RuleType, err))
		}
	}
	return result.ErrorOrNil()
}
