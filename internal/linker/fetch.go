package linker

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
)

// FetchUnlinked returns the rows of tableID whose referenceField is empty, in server order.
// No matching rows is not an error: it is logged as a warning and an empty slice is returned.
func FetchUnlinked(ctx context.Context, tables TableReader, tableID, referenceField string, logger zerolog.Logger) ([]baserow.Row, error) {
	if _, err := tables.GetTable(ctx, tableID); err != nil {
		logger.Error().Err(err).Str("table", tableID).Msg("failed to retrieve table")
		return nil, &TransportError{Op: "getTable", TableID: tableID, Err: err}
	}

	rows, err := tables.ListRows(ctx, tableID, baserow.Filter{
		Field: referenceField,
		Value: "",
		Type:  baserow.FilterEmpty,
	})
	if err != nil {
		logger.Error().Err(err).Str("table", tableID).Msg("failed to filter rows")
		return nil, &TransportError{Op: "listRows", TableID: tableID, Err: err}
	}
	if len(rows) == 0 {
		logger.Warn().Str("table", tableID).Str("field", referenceField).Msg("no rows with empty reference fields found")
		return []baserow.Row{}, nil
	}

	logger.Info().Str("table", tableID).Int("rows", len(rows)).Msg("retrieved unlinked rows")
	return rows, nil
}
