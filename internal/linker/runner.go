package linker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jimwitte/baserow-record-linker/pkg/redact"
)

// ConfigLinker links one config. *Linker implements it.
type ConfigLinker interface {
	Link(ctx context.Context, cfg LinkConfig) Result
}

// Report aggregates the results of the configs that ran, in order.
type Report struct {
	Results []Result
}

func (r Report) Linked() int {
	n := 0
	for _, res := range r.Results {
		n += res.Linked
	}
	return n
}

func (r Report) Unmatched() int {
	n := 0
	for _, res := range r.Results {
		n += res.Unmatched
	}
	return n
}

// Failed returns the results that ended with an error.
func (r Report) Failed() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Runner processes configs strictly in order.
type Runner struct {
	linker ConfigLinker
	logger zerolog.Logger
	policy FailurePolicy
}

// NewRunner constructs a Runner.
func NewRunner(linker ConfigLinker, logger zerolog.Logger, policy FailurePolicy) *Runner {
	return &Runner{
		linker: linker,
		logger: logger,
		policy: policy,
	}
}

// Run links every config in order.
//
// Under FailurePolicyAbort the first failed config stops the run: later configs are never
// linked and its error is returned. Under FailurePolicyContinue every config runs and the
// failures are returned joined. The report holds the results of every config that ran.
func (r *Runner) Run(ctx context.Context, cfgs []LinkConfig) (Report, error) {
	var report Report
	var errs []error

	r.logger.Info().Int("configs", len(cfgs)).Str("policy", r.policy.String()).Msg("link run start")
	for i, cfg := range cfgs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := r.linker.Link(ctx, cfg)
		report.Results = append(report.Results, res)
		if res.Err == nil {
			continue
		}

		err := fmt.Errorf("config %d (%s): %w", i+1, res.ConfigID, res.Err)
		r.logger.Error().
			Str("config", res.ConfigID).
			Str("kind", res.Kind().String()).
			Str("error", redact.Secrets(res.Err.Error())).
			Msg("link config failed")
		if r.policy == FailurePolicyAbort {
			return report, err
		}
		errs = append(errs, err)
	}

	r.logger.Info().
		Int("linked", report.Linked()).
		Int("unmatched", report.Unmatched()).
		Int("failed", len(report.Failed())).
		Msg("link run complete")
	return report, errors.Join(errs...)
}
