package baserow

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Filter types understood by the row list endpoint.
const (
	FilterEqual   = "equal"
	FilterEmpty   = "empty"
	FilterBoolean = "boolean"
)

// Filter is a single (field, value, type) row filter.
type Filter struct {
	Field string
	Value string
	Type  string
}

// Field describes one column of a table.
type Field struct {
	ID      int64  `json:"id" yaml:"id"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Primary bool   `json:"primary" yaml:"primary"`
}

// Table is a table handle: its id and field metadata.
type Table struct {
	ID     string
	Fields []Field
}

// PrimaryField returns the name of the table's primary field, or "" if none is marked.
func (t Table) PrimaryField() string {
	for _, f := range t.Fields {
		if f.Primary {
			return f.Name
		}
	}
	return ""
}

// Row is one remote record keyed by user field names.
type Row struct {
	ID     int64
	Fields map[string]any
}

// Get returns the value of a field and whether the row carries it at all.
func (r Row) Get(name string) (any, bool) {
	if r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[name]
	return v, ok
}

// rowFromJSON splits a row object into its id and remaining fields.
func rowFromJSON(raw map[string]any) (Row, error) {
	idRaw, ok := raw["id"]
	if !ok {
		return Row{}, fmt.Errorf("row object missing id")
	}
	id, err := parseRowID(idRaw)
	if err != nil {
		return Row{}, err
	}
	fields := make(map[string]any, len(raw))
	for k, v := range raw {
		if k == "id" || k == "order" {
			continue
		}
		fields[k] = v
	}
	return Row{ID: id, Fields: fields}, nil
}

func parseRowID(v any) (int64, error) {
	switch id := v.(type) {
	case json.Number:
		return id.Int64()
	case float64:
		return int64(id), nil
	case int64:
		return id, nil
	case int:
		return int64(id), nil
	case string:
		return strconv.ParseInt(id, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported row id type %T", v)
	}
}
