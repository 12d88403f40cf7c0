package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jimwitte/baserow-record-linker/internal/config"
	"github.com/jimwitte/baserow-record-linker/internal/linkconfig"
	"github.com/jimwitte/baserow-record-linker/internal/linker"
	"github.com/jimwitte/baserow-record-linker/pkg/baserow"
)

// Run performs one linking run: it connects to Baserow, loads the link configs, and links
// them in order under the configured failure policy.
func Run(ctx context.Context, cfg config.Config, logger zerolog.Logger) (linker.Report, error) {
	if err := cfg.Validate(); err != nil {
		return linker.Report{}, err
	}

	logger = logger.With().Str("run", uuid.NewString()).Logger()
	runStart := time.Now()
	logger.Info().
		Str("baserow", cfg.BaseURL).
		Str("policy", cfg.FailurePolicy.String()).
		Float64("write_rps", cfg.WriteRPS).
		Msg("starting record linker")

	client, err := baserow.NewClient(
		cfg.BaseURL,
		cfg.Token,
		cfg.DefaultCAPath,
		baserow.WithWriteRateLimit(cfg.WriteRPS),
		baserow.WithPageSize(cfg.PageSize),
	)
	if err != nil {
		return linker.Report{}, &linker.ConfigurationError{Key: config.KeyBaseURL, Message: "create baserow client", Err: err}
	}

	loadStart := time.Now()
	cfgs, err := loadLinkConfigs(ctx, cfg, client, logger)
	if err != nil {
		return linker.Report{}, err
	}
	logger.Info().Int("configs", len(cfgs)).Dur("duration", time.Since(loadStart).Round(time.Millisecond)).Msg("loaded link configs")

	l := linker.New(client, logger, cfg.FailurePolicy)
	report, err := linker.NewRunner(l, logger, cfg.FailurePolicy).Run(ctx, cfgs)

	logger.Info().
		Int("linked", report.Linked()).
		Int("unmatched", report.Unmatched()).
		Int("failed", len(report.Failed())).
		Dur("duration", time.Since(runStart).Round(time.Millisecond)).
		Msg("link run finished")
	return report, err
}

func loadLinkConfigs(ctx context.Context, cfg config.Config, tables linker.TableReader, logger zerolog.Logger) ([]linker.LinkConfig, error) {
	if cfg.LinksFile != "" {
		if cfg.ConfigTableID != "" {
			logger.Warn().Str("file", cfg.LinksFile).Str("table", cfg.ConfigTableID).Msg("links file set; ignoring config table")
		}
		return linkconfig.FromFile(cfg.LinksFile)
	}
	return linkconfig.FromTable(ctx, tables, cfg.ConfigTableID, logger)
}
