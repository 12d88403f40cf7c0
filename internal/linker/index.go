package linker

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
)

// Collision records a row that was replaced in the index by a later row with the same key.
type Collision struct {
	Key     string
	Dropped baserow.Row
	Kept    baserow.Row
}

// Index maps normalized match keys to the last row observed with that key.
type Index struct {
	entries map[string]baserow.Row

	// Collisions lists every overwrite in the order it happened.
	Collisions []Collision
}

func newIndex() *Index {
	return &Index{entries: make(map[string]baserow.Row)}
}

// Lookup returns the row stored under key.
func (ix *Index) Lookup(key string) (baserow.Row, bool) {
	row, ok := ix.entries[key]
	return row, ok
}

// Len returns the number of distinct keys.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// Keys returns the index keys in sorted order.
func (ix *Index) Keys() []string {
	out := make([]string, 0, len(ix.entries))
	for k := range ix.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (ix *Index) put(key string, row baserow.Row) (baserow.Row, bool) {
	prev, dup := ix.entries[key]
	ix.entries[key] = row
	if dup {
		ix.Collisions = append(ix.Collisions, Collision{Key: key, Dropped: prev, Kept: row})
	}
	return prev, dup
}

// BuildIndex reads every row of a table and indexes it by the normalized value of matchField.
//
// Rows without the field are logged at error level and skipped; rows with an empty value are
// logged as warnings and skipped. A duplicate key replaces the earlier row (last write wins)
// and is recorded in Index.Collisions. Table lookup and row retrieval failures are returned
// as *TransportError; a value that is not text is returned as *DataShapeError.
func BuildIndex(ctx context.Context, tables TableReader, tableID, matchField string, logger zerolog.Logger) (*Index, error) {
	if _, err := tables.GetTable(ctx, tableID); err != nil {
		logger.Error().Err(err).Str("table", tableID).Msg("failed to retrieve table")
		return nil, &TransportError{Op: "getTable", TableID: tableID, Err: err}
	}

	rows, err := tables.ListRows(ctx, tableID)
	if err != nil {
		logger.Error().Err(err).Str("table", tableID).Msg("failed to retrieve rows")
		return nil, &TransportError{Op: "listRows", TableID: tableID, Err: err}
	}

	ix := newIndex()
	for _, row := range rows {
		key, err := indexKey(tableID, row, matchField)
		if err != nil {
			var shapeErr *DataShapeError
			switch {
			case errors.Is(err, ErrFieldMissing):
				logger.Error().Str("table", tableID).Int64("row", row.ID).Str("field", matchField).Msg("field not found in row")
				continue
			case errors.Is(err, errEmptyValue):
				logger.Warn().Str("table", tableID).Int64("row", row.ID).Str("field", matchField).Msg("missing field value in row")
				continue
			case errors.As(err, &shapeErr):
				logger.Error().Err(err).Str("table", tableID).Int64("row", row.ID).Msg("unexpected error processing row")
			}
			return nil, err
		}

		logger.Debug().Str("table", tableID).Int64("row", row.ID).Str("key", key).Msg("indexed row")
		if _, dup := ix.put(key, row); dup {
			logger.Warn().Str("table", tableID).Int64("row", row.ID).Str("key", key).Msg("duplicate index key; keeping the later row")
		}
	}

	logger.Info().
		Str("table", tableID).
		Int("rows", len(rows)).
		Int("keys", ix.Len()).
		Int("collisions", len(ix.Collisions)).
		Msg("index creation completed")
	return ix, nil
}

var errEmptyValue = errors.New("empty field value")

func indexKey(tableID string, row baserow.Row, field string) (string, error) {
	v, ok := row.Get(field)
	if !ok {
		return "", ErrFieldMissing
	}
	if isFalsy(v) {
		return "", errEmptyValue
	}
	key, err := Normalize(v)
	if err != nil {
		return "", &DataShapeError{TableID: tableID, RowID: row.ID, Field: field, Err: err}
	}
	if key == "" {
		return "", errEmptyValue
	}
	return key, nil
}
