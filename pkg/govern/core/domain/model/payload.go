package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Row is a single record of a job's data payload.
type Row map[string]interface{}

// Copy creates a shallow copy of the row.
func (r Row) Copy() Row {
	cloned := make(Row, len(r))
	for k, v := range r {
		cloned[k] = v
	}
	return cloned
}

// Payload is the row-oriented data a job carries through its pipeline.
type Payload []Row

// Copy creates a row-level copy of the payload. Cell values are shared;
// a transformation must copy a row before mutating it.
func (p Payload) Copy() Payload {
	cloned := make(Payload, len(p))
	for i, row := range p {
		cloned[i] = row.Copy()
	}
	return cloned
}

// Columns returns the sorted union of field names across all rows.
func (p Payload) Columns() []string {
	seen := make(map[string]struct{})
	for _, row := range p {
		for k := range row {
			seen[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(seen))
	for k := range seen {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

// Value implements the `driver.Valuer` interface, converting the Payload to
// a JSON string.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to
// a Payload.
func (p *Payload) Scan(value interface{}) error {
	if value == nil {
		*p = make(Payload, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for Payload: %T", value)
	}

	if len(b) == 0 {
		*p = make(Payload, 0)
		return nil
	}
	if err := json.Unmarshal(b, p); err != nil {
		return fmt.Errorf("failed to unmarshal Payload JSON: %w", err)
	}
	return nil
}

// ParsePayload converts raw decoded JSON into a Payload. It accepts either a
// bare array of objects or an envelope object with a "data" array, which is
// how API sources commonly wrap their records.
func ParsePayload(raw interface{}) (Payload, error) {
	if raw == nil {
		return Payload{}, nil
	}

	if envelope, ok := raw.(map[string]interface{}); ok {
		if inner, ok := envelope["data"]; ok {
			raw = inner
		} else {
			// A single object becomes a one-row payload.
			return Payload{Row(envelope)}, nil
		}
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("payload must be an array of objects or an object with a \"data\" array, got %T", raw)
	}

	payload := make(Payload, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("payload row %d is not an object (got %T)", i, item)
		}
		payload = append(payload, Row(obj))
	}
	return payload, nil
}

// ColumnInfo describes a single column in a schema snapshot.
type ColumnInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	NullCount   int    `json:"null_count"`
	UniqueCount int    `json:"unique_count"`
}

// Schema is a point-in-time snapshot of a payload's shape, recorded on
// lineage events before and after transformation.
type Schema struct {
	Columns  []ColumnInfo `json:"columns"`
	RowCount int          `json:"row_count"`
}

// Value implements the `driver.Valuer` interface for Schema.
func (s Schema) Value() (driver.Value, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface for Schema.
func (s *Schema) Scan(value interface{}) error {
	if value == nil {
		*s = Schema{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for Schema: %T", value)
	}
	if len(b) == 0 {
		*s = Schema{}
		return nil
	}
	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal Schema JSON: %w", err)
	}
	return nil
}

// SnapshotSchema computes the schema of a payload: per-column value type,
// null count, and distinct count, plus the row count.
func SnapshotSchema(p Payload) Schema {
	schema := Schema{
		Columns:  make([]ColumnInfo, 0),
		RowCount: len(p),
	}

	for _, column := range p.Columns() {
		info := ColumnInfo{Name: column}
		distinct := make(map[string]struct{})
		for _, row := range p {
			val, ok := row[column]
			if !ok || val == nil {
				info.NullCount++
				continue
			}
			if info.Type == "" {
				info.Type = valueTypeName(val)
			}
			distinct[fmt.Sprintf("%v", val)] = struct{}{}
		}
		if info.Type == "" {
			info.Type = "null"
		}
		info.UniqueCount = len(distinct)
		schema.Columns = append(schema.Columns, info)
	}
	return schema
}

// valueTypeName names a payload cell's type the way schema consumers expect.
func valueTypeName(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, float32, int, int64, json.Number:
		return "number"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// SchemaColumnChange records a column whose type changed between snapshots.
type SchemaColumnChange struct {
	Column  string `json:"column"`
	OldType string `json:"old_type"`
	NewType string `json:"new_type"`
}

// SchemaDiff summarizes the differences between two schema snapshots.
type SchemaDiff struct {
	ColumnsAdded    []string             `json:"columns_added"`
	ColumnsRemoved  []string             `json:"columns_removed"`
	ColumnsModified []SchemaColumnChange `json:"columns_modified"`
	RowCountChange  int                  `json:"row_count_change"`
}

// CompareSchemas computes the diff between an input and output schema.
func CompareSchemas(input, output Schema) SchemaDiff {
	diff := SchemaDiff{
		ColumnsAdded:    make([]string, 0),
		ColumnsRemoved:  make([]string, 0),
		ColumnsModified: make([]SchemaColumnChange, 0),
		RowCountChange:  output.RowCount - input.RowCount,
	}

	inputCols := make(map[string]ColumnInfo, len(input.Columns))
	for _, c := range input.Columns {
		inputCols[c.Name] = c
	}
	outputCols := make(map[string]ColumnInfo, len(output.Columns))
	for _, c := range output.Columns {
		outputCols[c.Name] = c
	}

	for name := range outputCols {
		if _, ok := inputCols[name]; !ok {
			diff.ColumnsAdded = append(diff.ColumnsAdded, name)
		}
	}
	for name, in := range inputCols {
		out, ok := outputCols[name]
		if !ok {
			diff.ColumnsRemoved = append(diff.ColumnsRemoved, name)
			continue
		}
		if in.Type != out.Type {
			diff.ColumnsModified = append(diff.ColumnsModified, SchemaColumnChange{
				Column:  name,
				OldType: in.Type,
				NewType: out.Type,
			})
		}
	}
	sort.Strings(diff.ColumnsAdded)
	sort.Strings(diff.ColumnsRemoved)
	sort.Slice(diff.ColumnsModified, func(i, j int) bool {
		return diff.ColumnsModified[i].Column < diff.ColumnsModified[j].Column
	})
	return diff
}
