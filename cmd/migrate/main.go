// Package main runs the one-shot migration: it copies the local JSON store
// into the cloud document store, deduplicating organizations and backfilling
// orgId/eventId on legacy records.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/campus-dues/backend/config"
	"github.com/campus-dues/backend/internal/bootstrap"
	"github.com/campus-dues/backend/internal/migrate"
	"github.com/campus-dues/backend/internal/store"
)

type flags struct {
	dataFile          string
	cloud             string
	dryRun            bool
	dedupe            bool
	noBackup          bool
	normalizeOrgNames bool
	verbose           bool
	jsonOut           bool
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Reconcile the local JSON store into the cloud document store",
		Long: `Reconcile the local JSON store into the cloud document store.

The run:
  - groups organizations by canonical name and reuses the oldest record
  - backfills orgId on events and payments, and eventId on payments
  - re-keys officer profiles from canonical names to organization ids
  - writes every record to the target, counting failures per collection

Without a cloud store the local file itself is rewritten. Runs are safe to
repeat.

Examples:
  migrate --dry-run --verbose
  migrate --cloud postgres --dedupe
  migrate --data-file ./data/db.json --cloud mongo --normalize-org-names`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.dataFile, "data-file", "", "local JSON store (default: DATA_FILE)")
	cmd.Flags().StringVar(&f.cloud, "cloud", "", "cloud store to migrate into: postgres or mongo (default: CLOUD_STORE)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "plan and report without writing anything")
	cmd.Flags().BoolVar(&f.dedupe, "dedupe", false, "merge organizations that share a canonical name")
	cmd.Flags().BoolVar(&f.noBackup, "no-backup", false, "skip the timestamped backup of the local file")
	cmd.Flags().BoolVar(&f.normalizeOrgNames, "normalize-org-names", false, "rewrite event org names to the organization's display name")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "list every field change")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false, "print the report as JSON")
	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	logger := newLogger(f.verbose)
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	dataFile := cfg.Store.DataFile
	if f.dataFile != "" {
		dataFile = f.dataFile
	}
	kind := cfg.Store.CloudStore
	if cmd.Flags().Changed("cloud") {
		kind = strings.ToLower(strings.TrimSpace(f.cloud))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cloud, closeCloud, err := bootstrap.OpenCloudStore(ctx, cfg, kind, logger)
	if err != nil {
		return err
	}
	defer closeCloud()

	m := migrate.New(store.NewFileBackend(dataFile, logger), cloud, migrate.Options{
		DryRun:            f.dryRun,
		Dedupe:            f.dedupe,
		NormalizeOrgNames: f.normalizeOrgNames,
		NoBackup:          f.noBackup,
	}, logger)
	report, err := m.Run(ctx)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	out := cmd.OutOrStdout()
	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		report.WriteSummary(out, f.verbose)
	}
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d writes failed", n)
	}
	return nil
}

func newLogger(verbose bool) *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !verbose {
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	logger, _ := config.Build()
	return logger
}
