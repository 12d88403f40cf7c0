// Package linker matches rows of a source table to rows of a target table by a normalized
// text key and writes the target's primary-key value back into the source rows.
package linker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
	"github.com/jimwitte/baserow-record-linker/pkg/redact"
)

// TableReader is the read side of the remote table service.
type TableReader interface {
	GetTable(ctx context.Context, tableID string) (baserow.Table, error)
	ListRows(ctx context.Context, tableID string, filters ...baserow.Filter) ([]baserow.Row, error)
}

// RowWriter performs one remote row update. The error is returned to the caller, which
// decides whether the run continues.
type RowWriter interface {
	WriteRow(ctx context.Context, tableID string, rowID int64, fields map[string]any) error
}

// Store is the full remote surface the linker needs.
type Store interface {
	TableReader
	RowWriter
}

type FailurePolicy int

const (
	// FailurePolicyAbort stops at the first failed row or config.
	FailurePolicyAbort FailurePolicy = iota
	// FailurePolicyContinue records per-row and per-config failures and keeps going.
	FailurePolicyContinue
)

func (p FailurePolicy) String() string {
	if p == FailurePolicyContinue {
		return "continue"
	}
	return "abort"
}

// Result summarizes one config's linking pass.
type Result struct {
	ConfigID string

	// Linked counts source rows whose reference field was written.
	Linked int
	// Unmatched counts source rows whose key had no entry in the target index.
	Unmatched int
	// Skipped counts source rows that failed under FailurePolicyContinue.
	Skipped int

	// Collisions counts duplicate target keys dropped while building the index.
	Collisions int

	// Err is the error that ended the config, if any.
	Err error
}

// Kind classifies Err.
func (r Result) Kind() ErrorKind {
	return KindOf(r.Err)
}

// Linker runs the linking pass for one config at a time.
type Linker struct {
	store  Store
	logger zerolog.Logger
	policy FailurePolicy
}

// New constructs a Linker.
func New(store Store, logger zerolog.Logger, policy FailurePolicy) *Linker {
	return &Linker{
		store:  store,
		logger: logger,
		policy: policy,
	}
}

// Link validates cfg, fetches the source rows with an empty reference field, indexes the
// target table, and writes the target primary-key value into each matched source row.
//
// When no source row is unlinked the target table is never read.
func (l *Linker) Link(ctx context.Context, cfg LinkConfig) Result {
	res := Result{ConfigID: cfg.ID()}
	logger := l.logger.With().Str("config", res.ConfigID).Logger()
	start := time.Now()

	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid link config")
		res.Err = err
		return res
	}

	logger.Info().
		Str("source", cfg.SourceTableID).
		Str("target", cfg.TargetTableID).
		Msg("linking records between source and target tables")

	queue, err := FetchUnlinked(ctx, l.store, cfg.SourceTableID, cfg.SourceReferenceField, logger)
	if err != nil {
		res.Err = err
		return res
	}
	if len(queue) == 0 {
		return res
	}

	index, err := BuildIndex(ctx, l.store, cfg.TargetTableID, cfg.TargetMatchField, logger)
	if err != nil {
		res.Err = err
		return res
	}
	res.Collisions = len(index.Collisions)

	for _, row := range queue {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		if err := l.linkRow(ctx, cfg, index, row, &res, logger); err != nil {
			if l.policy == FailurePolicyAbort {
				res.Err = err
				return res
			}
			res.Skipped++
			logger.Error().Int64("row", row.ID).Str("error", redact.Secrets(err.Error())).Msg("skipping source row")
		}
	}

	logger.Info().
		Int("linked", res.Linked).
		Int("unmatched", res.Unmatched).
		Int("skipped", res.Skipped).
		Dur("duration", time.Since(start).Round(time.Millisecond)).
		Msg("linking complete")
	return res
}

func (l *Linker) linkRow(ctx context.Context, cfg LinkConfig, index *Index, row baserow.Row, res *Result, logger zerolog.Logger) error {
	raw, ok := row.Get(cfg.SourceMatchField)
	if !ok {
		return &DataShapeError{TableID: cfg.SourceTableID, RowID: row.ID, Field: cfg.SourceMatchField, Err: ErrFieldMissing}
	}
	key, err := Normalize(raw)
	if err != nil {
		return &DataShapeError{TableID: cfg.SourceTableID, RowID: row.ID, Field: cfg.SourceMatchField, Err: err}
	}

	target, ok := index.Lookup(key)
	if !ok {
		res.Unmatched++
		logger.Warn().Int64("row", row.ID).Str("key", key).Msg("no match found for source row")
		return nil
	}

	pk, ok := target.Get(cfg.TargetPrimaryKeyField)
	if !ok {
		return &DataShapeError{TableID: cfg.TargetTableID, RowID: target.ID, Field: cfg.TargetPrimaryKeyField, Err: ErrFieldMissing}
	}

	fields := map[string]any{cfg.SourceReferenceField: pk}
	if err := l.store.WriteRow(ctx, cfg.SourceTableID, row.ID, fields); err != nil {
		return &TransportError{Op: "updateRow", TableID: cfg.SourceTableID, Err: err}
	}

	res.Linked++
	logger.Info().Int64("row", row.ID).Int64("target_row", target.ID).Msg("linked source row to target row")
	return nil
}
