package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jimwitte/baserow-record-linker/internal/app"
	"github.com/jimwitte/baserow-record-linker/internal/config"
	"github.com/jimwitte/baserow-record-linker/internal/linker"
	"github.com/jimwitte/baserow-record-linker/internal/logging"
	"github.com/jimwitte/baserow-record-linker/internal/version"
	"github.com/jimwitte/baserow-record-linker/pkg/redact"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the CLI and maps the outcome to an exit code: 0 on success, 2 for
// configuration errors, 1 for anything else.
func execute(ctx context.Context, args []string) int {
	v := viper.New()
	var configFile string

	root := &cobra.Command{
		Use:   "record-linker",
		Short: "Link Baserow rows across tables by matching field values",
		Long: `record-linker fills an empty reference field on each row of a source table with
the primary key of the target-table row whose match field holds the same text,
compared case-insensitively after trimming whitespace.

Link configs are read from a Baserow config table (CONFIG_TABLE_ID) or a YAML
links file (LINKS_FILE), and processed in order. Rows that already carry a
reference are never touched, so repeated runs only retry unmatched rows.`,
		Version:       version.Current,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
	}
	root.SetVersionTemplate("record-linker {{.Version}}\n")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Link every active config once and exit",
		Args:  cobra.NoArgs,
	}

	for _, cmd := range []*cobra.Command{root, runCmd} {
		cmd.RunE = func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd.Context(), v, configFile)
		}
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "YAML config file")
	flags.String("base-url", "", "Baserow API base URL (env: "+config.KeyBaseURL+")")
	flags.String("links-file", "", "YAML links file; overrides the config table (env: "+config.KeyLinksFile+")")
	flags.String("config-table-id", "", "Baserow table holding link configs (env: "+config.KeyConfigTableID+")")
	flags.String("failure-policy", "", "abort or continue (env: "+config.KeyFailurePolicy+")")
	flags.Float64("write-rps", 0, "Max row updates per second, 0 disables (env: "+config.KeyWriteRPS+")")
	flags.Int("page-size", 0, "Rows per list request (env: "+config.KeyPageSize+")")
	flags.String("log-level", "", "trace, debug, info, warn, error (env: "+config.KeyLogLevel+")")
	flags.String("log-format", "", "json, console, or auto (env: "+config.KeyLogFormat+")")
	for key, name := range map[string]string{
		config.KeyBaseURL:       "base-url",
		config.KeyLinksFile:     "links-file",
		config.KeyConfigTableID: "config-table-id",
		config.KeyFailurePolicy: "failure-policy",
		config.KeyWriteRPS:      "write-rps",
		config.KeyPageSize:      "page-size",
		config.KeyLogLevel:      "log-level",
		config.KeyLogFormat:     "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic("programming error: bind flag " + name + ": " + err.Error())
		}
	}

	root.AddCommand(runCmd, &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "record-linker %s\n", version.Current)
			return err
		},
	})

	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var logged *loggedError
	if !errors.As(err, &logged) {
		// Never reached the run logger: bad flags or an unloadable configuration.
		_, _ = fmt.Fprintf(os.Stderr, "record-linker: %s\n", redact.Secrets(err.Error()))
	}
	if linker.KindOf(err) == linker.ErrorKindConfiguration {
		return 2
	}
	return 1
}

// loggedError marks a run failure that has already been logged.
type loggedError struct{ err error }

func (e *loggedError) Error() string { return e.err.Error() }
func (e *loggedError) Unwrap() error { return e.err }

func runOnce(ctx context.Context, v *viper.Viper, configFile string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log)

	_, err = app.Run(ctx, cfg, logger)
	if err == nil {
		return nil
	}
	logger.WithLevel(zerolog.FatalLevel).
		Str("kind", linker.KindOf(err).String()).
		Str("error", redact.Secrets(err.Error())).
		Msg("record linking failed")
	return &loggedError{err: err}
}
