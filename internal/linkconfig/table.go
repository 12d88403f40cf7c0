// Package linkconfig loads the ordered list of link configs from a config table or a YAML file.
package linkconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jimwitte/baserow-record-linker/internal/linker"
	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
)

// Config table columns.
const (
	ColumnActive               = "Active"
	ColumnSourceTableID        = "Source Table ID"
	ColumnTargetTableID        = "Target Table ID"
	ColumnSourceMatchField     = "Source Table Match Field"
	ColumnTargetMatchField     = "Target Table Match Field"
	ColumnSourceReferenceField = "Source Table Reference Field"
)

// FromTable reads the active rows of the config table, in table order. The target
// primary-key field of each config is the primary field of its target table.
//
// Missing columns leave the corresponding LinkConfig field empty; the linker's own
// validation reports them when the config runs.
func FromTable(ctx context.Context, tables linker.TableReader, tableID string, logger zerolog.Logger) ([]linker.LinkConfig, error) {
	configTable, err := tables.GetTable(ctx, tableID)
	if err != nil {
		return nil, &linker.TransportError{Op: "getTable", TableID: tableID, Err: err}
	}

	rows, err := tables.ListRows(ctx, tableID, baserow.Filter{
		Field: ColumnActive,
		Value: "true",
		Type:  baserow.FilterBoolean,
	})
	if err != nil {
		return nil, &linker.TransportError{Op: "listRows", TableID: tableID, Err: err}
	}

	primaryFields := make(map[string]string)
	out := make([]linker.LinkConfig, 0, len(rows))
	for _, row := range rows {
		cfg := linker.LinkConfig{
			Name:                 textValue(row, configTable.PrimaryField()),
			SourceTableID:        textValue(row, ColumnSourceTableID),
			TargetTableID:        textValue(row, ColumnTargetTableID),
			SourceMatchField:     textValue(row, ColumnSourceMatchField),
			TargetMatchField:     textValue(row, ColumnTargetMatchField),
			SourceReferenceField: textValue(row, ColumnSourceReferenceField),
		}

		if cfg.TargetTableID != "" {
			pk, ok := primaryFields[cfg.TargetTableID]
			if !ok {
				target, err := tables.GetTable(ctx, cfg.TargetTableID)
				if err != nil {
					return nil, &linker.TransportError{Op: "getTable", TableID: cfg.TargetTableID, Err: err}
				}
				pk = target.PrimaryField()
				primaryFields[cfg.TargetTableID] = pk
				logger.Info().Str("table", cfg.TargetTableID).Str("field", pk).Msg("retrieved primary key field")
			}
			cfg.TargetPrimaryKeyField = pk
		}
		out = append(out, cfg)
	}

	logger.Info().Str("table", tableID).Int("configs", len(out)).Msg("fetched record link configurations")
	return out, nil
}

// textValue renders a cell as text. Numbers are formatted without a trailing ".0" so
// numeric table id columns work.
func textValue(row baserow.Row, field string) string {
	if field == "" {
		return ""
	}
	v, ok := row.Get(field)
	if !ok || v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}
