package rule

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
	exception "github.com/fluxgate/fluxgate/pkg/govern/support/util/exception"
	logger "github.com/fluxgate/fluxgate/pkg/govern/support/util/logger"
)

const moduleName = "rule_engine"

// ApplicationError reports the failure of one rule inside an ordered rule
// list. The index and rule type identify the offender; the payload that was
// being transformed is discarded by the caller.
type ApplicationError struct {
	RuleIndex int
	RuleType  model.RuleType
	Cause     error
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("rule %d (%s) failed: %v", e.RuleIndex, e.RuleType, e.Cause)
}

func (e *ApplicationError) Unwrap() error { return e.Cause }

// GovernKind classifies rule failures for the error taxonomy.
func (e *ApplicationError) GovernKind() exception.Kind { return exception.KindRuleApplication }

// Engine applies ordered transformation rules to payloads. It holds no
// state and never touches storage; a single instance is shared by every
// concurrent job.
type Engine struct{}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Apply runs every rule in order against the payload and returns the
// transformed payload together with one effect record per rule. The input
// payload is never mutated. On the first failing rule the partial result is
// discarded and an ApplicationError identifies the rule.
func (e *Engine) Apply(payload model.Payload, rules model.RuleList) (model.Payload, []model.RuleEffect, error) {
	current := payload.Copy()
	effects := make([]model.RuleEffect, 0, len(rules))

	for i, rule := range rules {
		rowsIn := len(current)
		next, touched, err := e.applyOne(current, rule)
		if err != nil {
			logger.Warnf("Rule application aborted at rule %d (%s): %v", i, rule.RuleType, err)
			return nil, nil, &ApplicationError{RuleIndex: i, RuleType: rule.RuleType, Cause: err}
		}
		current = next
		effects = append(effects, model.RuleEffect{
			RuleType:      rule.RuleType.String(),
			RowsIn:        rowsIn,
			RowsOut:       len(current),
			FieldsTouched: touched,
		})
		logger.Debugf("Applied rule %d (%s): %d -> %d rows", i, rule.RuleType, rowsIn, len(current))
	}

	return current, effects, nil
}

func (e *Engine) applyOne(payload model.Payload, rule model.TransformationRule) (model.Payload, []string, error) {
	switch rule.RuleType {
	case model.RuleRemoveDuplicates:
		var params RemoveDuplicatesParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return nil, nil, err
		}
		return removeDuplicates(payload, params)
	case model.RuleHandleNulls:
		var params HandleNullsParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return nil, nil, err
		}
		return handleNulls(payload, params)
	case model.RuleNormalizeText:
		var params NormalizeTextParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return nil, nil, err
		}
		return normalizeText(payload, params)
	case model.RuleValidateDataTypes:
		var params ValidateDataTypesParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return nil, nil, err
		}
		return validateDataTypes(payload, params)
	case model.RuleFilterRows:
		var params FilterRowsParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return nil, nil, err
		}
		return filterRows(payload, params)
	case model.RuleAggregateData:
		var params AggregateDataParams
		if err := bindParameters(rule.Parameters, &params); err != nil {
			return nil, nil, err
		}
		return aggregateData(payload, params)
	default:
		return nil, nil, fmt.Errorf("unknown rule type %q", rule.RuleType)
	}
}

func removeDuplicates(payload model.Payload, params RemoveDuplicatesParams) (model.Payload, []string, error) {
	keyColumns := params.SubsetColumns
	if len(keyColumns) == 0 {
		keyColumns = payload.Columns()
	}

	keep := params.Keep
	if keep == "" {
		keep = "first"
	}

	// Duplicate keys are the canonical JSON of the key column values, so
	// rows compare by value rather than by map identity.
	keyOf := func(row model.Row) (string, error) {
		values := make([]interface{}, len(keyColumns))
		for i, column := range keyColumns {
			values[i] = row[column]
		}
		encoded, err := json.Marshal(values)
		if err != nil {
			return "", fmt.Errorf("failed to derive duplicate key: %w", err)
		}
		return string(encoded), nil
	}

	survivor := make(map[string]int, len(payload))
	for i, row := range payload {
		key, err := keyOf(row)
		if err != nil {
			return nil, nil, err
		}
		if _, seen := survivor[key]; !seen || keep == "last" {
			survivor[key] = i
		}
	}

	result := make(model.Payload, 0, len(survivor))
	for i, row := range payload {
		key, err := keyOf(row)
		if err != nil {
			return nil, nil, err
		}
		if survivor[key] == i {
			result = append(result, row)
		}
	}
	return result, keyColumns, nil
}

func handleNulls(payload model.Payload, params HandleNullsParams) (model.Payload, []string, error) {
	strategy := params.Strategy
	if strategy == "" {
		strategy = "drop"
	}

	columns := params.Columns
	if len(columns) == 0 {
		columns = payload.Columns()
	}

	isNull := func(row model.Row, column string) bool {
		value, ok := row[column]
		return !ok || value == nil
	}

	switch strategy {
	case "drop":
		result := make(model.Payload, 0, len(payload))
		for _, row := range payload {
			hasNull := false
			for _, column := range columns {
				if isNull(row, column) {
					hasNull = true
					break
				}
			}
			if !hasNull {
				result = append(result, row)
			}
		}
		return result, columns, nil

	case "fill":
		result := payload.Copy()
		for _, row := range result {
			for _, column := range columns {
				if isNull(row, column) {
					row[column] = params.FillValue
				}
			}
		}
		return result, columns, nil

	case "forward_fill":
		result := payload.Copy()
		last := make(map[string]interface{}, len(columns))
		for _, row := range result {
			for _, column := range columns {
				if isNull(row, column) {
					if carried, ok := last[column]; ok {
						row[column] = carried
					}
				} else {
					last[column] = row[column]
				}
			}
		}
		return result, columns, nil

	default:
		return nil, nil, fmt.Errorf("unknown null strategy %q", strategy)
	}
}

var specialChars = regexp.MustCompile(`[^a-zA-Z0-9\s]`)

func normalizeText(payload model.Payload, params NormalizeTextParams) (model.Payload, []string, error) {
	operations := params.Operations
	if len(operations) == 0 {
		operations = []string{"lower", "strip"}
	}

	result := payload.Copy()
	for _, row := range result {
		for _, column := range params.Columns {
			value, ok := row[column]
			if !ok || value == nil {
				continue
			}
			text := stringify(value)
			for _, op := range operations {
				switch op {
				case "lower":
					text = strings.ToLower(text)
				case "upper":
					text = strings.ToUpper(text)
				case "strip":
					text = strings.TrimSpace(text)
				case "remove_special_chars":
					text = specialChars.ReplaceAllString(text, "")
				default:
					return nil, nil, fmt.Errorf("unknown text operation %q", op)
				}
			}
			row[column] = text
		}
	}
	return result, params.Columns, nil
}

func validateDataTypes(payload model.Payload, params ValidateDataTypesParams) (model.Payload, []string, error) {
	touched := make([]string, 0, len(params.TypeMappings))
	for column := range params.TypeMappings {
		touched = append(touched, column)
	}
	sort.Strings(touched)

	result := payload.Copy()
	for _, row := range result {
		for column, target := range params.TypeMappings {
			value, ok := row[column]
			if !ok || value == nil {
				continue
			}
			coerced, ok := coerceValue(value, target)
			if ok {
				row[column] = coerced
			} else {
				// Uncoercible values become null instead of failing
				// the pipeline.
				row[column] = nil
			}
		}
	}
	return result, touched, nil
}

func filterRows(payload model.Payload, params FilterRowsParams) (model.Payload, []string, error) {
	touched := make([]string, 0, len(params.Conditions))
	for _, cond := range params.Conditions {
		touched = append(touched, cond.Column)
	}

	result := make(model.Payload, 0, len(payload))
	for _, row := range payload {
		matches := true
		for _, cond := range params.Conditions {
			ok, err := evaluateCondition(row, cond)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				matches = false
				break
			}
		}
		if matches {
			result = append(result, row)
		}
	}
	return result, touched, nil
}

func evaluateCondition(row model.Row, cond FilterCondition) (bool, error) {
	value, present := row[cond.Column]

	switch cond.Operator {
	case "is_null":
		return !present || value == nil, nil
	case "not_null":
		return present && value != nil, nil
	}

	if !present || value == nil {
		return false, nil
	}

	switch cond.Operator {
	case "equals":
		return valuesEqual(value, cond.Value), nil
	case "not_equals":
		return !valuesEqual(value, cond.Value), nil
	case "greater_than":
		left, right, ok := numericPair(value, cond.Value)
		return ok && left > right, nil
	case "less_than":
		left, right, ok := numericPair(value, cond.Value)
		return ok && left < right, nil
	case "contains":
		return strings.Contains(stringify(value), stringify(cond.Value)), nil
	default:
		return false, fmt.Errorf("unknown filter operator %q", cond.Operator)
	}
}

func aggregateData(payload model.Payload, params AggregateDataParams) (model.Payload, []string, error) {
	if len(params.GroupBy) == 0 || len(params.Aggregations) == 0 {
		return payload, nil, nil
	}

	touched := make([]string, 0, len(params.GroupBy)+len(params.Aggregations))
	touched = append(touched, params.GroupBy...)
	aggColumns := make([]string, 0, len(params.Aggregations))
	for column := range params.Aggregations {
		aggColumns = append(aggColumns, column)
	}
	sort.Strings(aggColumns)
	touched = append(touched, aggColumns...)

	type group struct {
		keys   model.Row
		values map[string][]interface{}
	}

	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, row := range payload {
		keyValues := make([]interface{}, len(params.GroupBy))
		for i, column := range params.GroupBy {
			keyValues[i] = row[column]
		}
		encoded, err := json.Marshal(keyValues)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to derive group key: %w", err)
		}
		key := string(encoded)

		g, ok := groups[key]
		if !ok {
			keys := make(model.Row, len(params.GroupBy))
			for i, column := range params.GroupBy {
				keys[column] = keyValues[i]
			}
			g = &group{keys: keys, values: make(map[string][]interface{})}
			groups[key] = g
			order = append(order, key)
		}
		for column := range params.Aggregations {
			if value, present := row[column]; present {
				g.values[column] = append(g.values[column], value)
			}
		}
	}

	result := make(model.Payload, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(model.Row, len(g.keys)+len(params.Aggregations))
		for column, value := range g.keys {
			row[column] = value
		}
		for _, column := range aggColumns {
			aggregated, err := aggregate(g.values[column], params.Aggregations[column])
			if err != nil {
				return nil, nil, fmt.Errorf("column %q: %w", column, err)
			}
			row[column] = aggregated
		}
		result = append(result, row)
	}
	return result, touched, nil
}

func aggregate(values []interface{}, fn string) (interface{}, error) {
	if fn == "count" {
		nonNull := 0
		for _, v := range values {
			if v != nil {
				nonNull++
			}
		}
		return nonNull, nil
	}

	numbers := make([]float64, 0, len(values))
	for _, v := range values {
		if n, ok := toNumber(v); ok {
			numbers = append(numbers, n)
		}
	}
	if len(numbers) == 0 {
		return nil, nil
	}

	switch fn {
	case "sum":
		total := 0.0
		for _, n := range numbers {
			total += n
		}
		return total, nil
	case "mean":
		total := 0.0
		for _, n := range numbers {
			total += n
		}
		return total / float64(len(numbers)), nil
	case "min":
		minimum := numbers[0]
		for _, n := range numbers[1:] {
			if n < minimum {
				minimum = n
			}
		}
		return minimum, nil
	case "max":
		maximum := numbers[0]
		for _, n := range numbers[1:] {
			if n > maximum {
				maximum = n
			}
		}
		return maximum, nil
	default:
		return nil, fmt.Errorf("unknown aggregation %q", fn)
	}
}

// datetimeLayouts are tried in order when coercing to datetime.
var datetimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

func coerceValue(value interface{}, target string) (interface{}, bool) {
	switch target {
	case "string":
		return stringify(value), true
	case "int":
		n, ok := toNumber(value)
		if !ok || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, false
		}
		return int64(n), true
	case "float":
		n, ok := toNumber(value)
		if !ok {
			return nil, false
		}
		return n, true
	case "datetime":
		switch v := value.(type) {
		case time.Time:
			return v.UTC().Format(time.RFC3339), true
		case string:
			for _, layout := range datetimeLayouts {
				if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
					return t.UTC().Format(time.RFC3339), true
				}
			}
			return nil, false
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// Whole floats print without a trailing ".0" so JSON-decoded
		// integers round-trip cleanly.
		if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return stringify(f)
		}
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func valuesEqual(left, right interface{}) bool {
	if ln, lok := toNumber(left); lok {
		if rn, rok := toNumber(right); rok {
			return ln == rn
		}
	}
	return stringify(left) == stringify(right)
}

func numericPair(left, right interface{}) (float64, float64, bool) {
	ln, lok := toNumber(left)
	rn, rok := toNumber(right)
	return ln, rn, lok && rok
}
