package ingestion

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	model "github.com/fluxgate/fluxgate/pkg/govern/core/domain/model"
)

// parseSwiftMessage flattens a `:tag:value` financial message into a
// single-row payload. Continuation lines (no leading tag) append to the
// previous field; tagged fields become `field_<tag>` columns.
func parseSwiftMessage(messageType, sender, receiver, content string) (model.Payload, error) {
	row := model.Row{
		"message_type": messageType,
		"sender":       sender,
		"receiver":     receiver,
	}

	currentField := ""
	fieldCount := 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.HasPrefix(line, ":") {
			rest := line[1:]
			sep := strings.Index(rest, ":")
			if sep <= 0 {
				return nil, fmt.Errorf("malformed field line %q", line)
			}
			tag := rest[:sep]
			value := rest[sep+1:]
			currentField = "field_" + tag
			row[currentField] = value
			fieldCount++
			continue
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" && currentField != "" {
			row[currentField] = row[currentField].(string) + "\n" + trimmed
		}
	}

	if fieldCount == 0 {
		return nil, fmt.Errorf("message carries no tagged fields")
	}
	return model.Payload{row}, nil
}

// decodeBatch parses an uploaded batch file into a payload.
func decodeBatch(content []byte, format string) (model.Payload, error) {
	switch format {
	case "json":
		var raw interface{}
		decoder := json.NewDecoder(bytes.NewReader(content))
		decoder.UseNumber()
		if err := decoder.Decode(&raw); err != nil {
			return nil, err
		}
		return model.ParsePayload(raw)
	case "csv":
		return decodeCSV(content)
	default:
		return nil, fmt.Errorf("unsupported batch format %q", format)
	}
}

// decodeCSV reads a header row then one payload row per record. Empty cells
// become nulls; numeric cells become numbers.
func decodeCSV(content []byte) (model.Payload, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	for i, column := range header {
		header[i] = strings.TrimSpace(column)
	}

	payload := make(model.Payload, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv record: %w", err)
		}
		row := make(model.Row, len(header))
		for i, column := range header {
			if i >= len(record) {
				row[column] = nil
				continue
			}
			row[column] = csvCell(record[i])
		}
		payload = append(payload, row)
	}
	return payload, nil
}

// csvCell infers a cell's value: empty means null, numbers become float64,
// everything else stays a string.
func csvCell(cell string) interface{} {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return n
	}
	return trimmed
}
