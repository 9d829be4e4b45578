package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type cliFlags struct {
	configPath     string
	host           string
	dbName         string
	appendMode     bool
	mode           string
	sourceType     string
	excludeColumns []string
	reportPath     string
	dryRun         bool
	timeout        time.Duration
	logLevel       string
}

var flags cliFlags

var rootCmd = newRootCmd(&flags)

func newRootCmd(f *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqlite2mongo <database file>",
		Short: "Import a SQLite3 database into MongoDB",
		Long: `Import every table of a SQLite3 database into a MongoDB database.

The database is named after the file by default (data.db -> data) and each
table becomes a collection. Collections are dropped before inserts unless
--append is given. Every collection is verified by document count.`,
		Args:          cobra.MaximumNArgs(1),
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, args, f)
		},
	}
	cmd.SetVersionTemplate("{{.Version}}\n")

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "path to migration TOML config file")
	fl.StringVar(&f.host, "host", defaultTargetURI, "mongodb uri string")
	fl.StringVarP(&f.dbName, "dbname", "n", "", "target database name (default: source file name)")
	fl.BoolVarP(&f.appendMode, "append", "a", false, "keep existing collections and append documents")
	fl.StringVar(&f.mode, "mode", "replace", "write mode: replace or append")
	fl.StringVar(&f.sourceType, "source-type", "sqlite", "source engine: sqlite, mysql or postgres")
	fl.StringSliceVar(&f.excludeColumns, "exclude-column", defaultExcludeColumns, "column names left out of documents")
	fl.StringVar(&f.reportPath, "report", "", "write a JSON run report to this path")
	fl.BoolVar(&f.dryRun, "dry-run", false, "extract and load into memory without contacting MongoDB")
	fl.DurationVar(&f.timeout, "timeout", defaultConnectTimeout, "MongoDB connect and server selection timeout")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error (default: $LOGLEVEL or warn)")
	cmd.Flags().BoolP("version", "v", false, "print version")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	interrupted := ctx.Err() != nil
	stop()

	if interrupted {
		fmt.Fprintln(os.Stderr, "\ninterrupted, the collection in progress must be treated as failed")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", describeFailure(err), err)
		os.Exit(1)
	}
	if interrupted {
		os.Exit(1)
	}
}

// buildConfig merges defaults, the optional config file, the positional
// source argument and explicitly set flags, then validates the result.
func buildConfig(cmd *cobra.Command, args []string, f *cliFlags) (*MigrationConfig, error) {
	var cfg *MigrationConfig
	if f.configPath != "" {
		loaded, err := loadConfig(f.configPath)
		if err != nil {
			return nil, wrapError(KindInvalidConfig, err, "load %s", f.configPath)
		}
		cfg = loaded
	} else {
		d := defaultConfig()
		cfg = &d
	}

	changed := cmd.Flags().Changed
	if len(args) > 0 {
		cfg.Source.DSN = args[0]
	}
	if changed("source-type") {
		cfg.Source.Type = f.sourceType
	}
	if changed("host") {
		cfg.Target.URI = f.host
	}
	if changed("dbname") {
		cfg.Target.Database = f.dbName
	}
	if changed("timeout") {
		cfg.Target.Timeout = f.timeout
	}
	if changed("exclude-column") {
		cfg.ExcludeColumns = f.excludeColumns
	}
	if changed("report") {
		cfg.Report = f.reportPath
	}
	if changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if changed("log-level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(f.logLevel))
	}
	if changed("mode") {
		m, err := ParseWriteMode(f.mode)
		if err != nil {
			return nil, wrapError(KindInvalidConfig, err, "--mode")
		}
		cfg.Mode = m
	}
	if changed("append") {
		if changed("mode") && f.appendMode != (cfg.Mode == ModeAppend) {
			return nil, newError(KindInvalidConfig, "--append contradicts --mode=%s", cfg.Mode)
		}
		if f.appendMode {
			cfg.Mode = ModeAppend
		} else if !changed("mode") {
			cfg.Mode = ModeReplace
		}
	}

	if cfg.Source.DSN == "" {
		return nil, newError(KindInvalidConfig, "source required: sqlite2mongo <database file> or source.dsn in --config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runMigration(cmd *cobra.Command, args []string, f *cliFlags) error {
	cfg, err := buildConfig(cmd, args, f)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel, cmd.ErrOrStderr())
	logger.Info("starting migration",
		slog.String("source", maskURI(cfg.Source.DSN)),
		slog.String("target", maskURI(cfg.Target.URI)),
		slog.String("mode", cfg.Mode.String()),
		slog.Bool("dry_run", cfg.DryRun))

	report := runPipeline(cmd.Context(), cfg, openTarget, logger)

	out := cmd.OutOrStdout()
	if len(report.Results) > 0 {
		if err := printSummary(out, report); err != nil {
			logger.Warn("summary", slog.Any("error", err))
		}
	}
	if cfg.Report != "" {
		if err := writeReport(cfg.Report, report); err != nil {
			logger.Error("report", slog.Any("error", err))
		}
	}

	if !report.Succeeded() {
		if report.Err != nil {
			return report.Err
		}
		return errors.New("migration incomplete")
	}
	fmt.Fprintf(out, "Done in %s.\n", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return nil
}
