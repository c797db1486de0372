package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/osiriscare/winaudit/internal/bundle"
	"github.com/osiriscare/winaudit/internal/reports"
	"github.com/osiriscare/winaudit/internal/sink"
	"github.com/osiriscare/winaudit/internal/snapshot"
)

func newAuditCmd(opts *rootOptions) *cobra.Command {
	var useSink bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run every collector and write a signed audit bundle",
		Long: `Run all collectors concurrently against the target and write the reports
into a bundle directory: one CSV per report plus a signed manifest with
per-file checksums. A collector failure is reported but does not stop the
others. --save additionally records each report as a snapshot; --sink
ships the reports to the configured Postgres sink.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if useSink && opts.cfg.Sink.PostgresDSN == "" {
				return errors.New("--sink needs sink.postgres_dsn in the config or WINAUDIT_SINK_DSN")
			}

			src, cleanup, err := opts.buildSource()
			if err != nil {
				return err
			}
			defer cleanup()

			key, pubHex, err := bundle.LoadOrCreateSigningKey(opts.cfg.SigningKeyPath())
			if err != nil {
				return err
			}

			runID := uuid.NewString()
			writer, err := bundle.NewWriter(opts.cfg.BundleDir(), runID, src.Host, key, pubHex)
			if err != nil {
				return err
			}

			var store *snapshot.Store
			if opts.save {
				store, err = snapshot.Open(opts.cfg.SnapshotDBPath())
				if err != nil {
					return fmt.Errorf("open snapshot store: %w", err)
				}
				defer store.Close()
			}

			var pg *sink.Sink
			if useSink {
				pg, err = sink.New(ctx, opts.cfg.Sink.PostgresDSN)
				if err != nil {
					return err
				}
				defer pg.Close()
				if err := pg.EnsureSchema(ctx); err != nil {
					return err
				}
			}

			results := reports.DefaultRegistry().RunAll(ctx, src)

			failed := 0
			for _, res := range results {
				if res.Err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "  %s %-10s %v\n", color.RedString("✗"), res.Collector, res.Err)
					continue
				}
				if err := writer.AddReport(res.Report); err != nil {
					return err
				}
				if store != nil {
					if _, err := store.Save(res.Report); err != nil {
						return fmt.Errorf("save %s snapshot: %w", res.Collector, err)
					}
				}
				if pg != nil {
					if err := pg.WriteReport(ctx, runID, res.Report); err != nil {
						return fmt.Errorf("sink %s: %w", res.Collector, err)
					}
				}
				fmt.Fprintf(os.Stdout, "  %s %-10s %4d rows  %s\n",
					color.GreenString("✓"), res.Collector, res.Report.Len(), res.Elapsed.Round(time.Millisecond))
			}

			if failed == len(results) {
				return fmt.Errorf("all %d collectors failed", failed)
			}

			manifestPath, err := writer.Finalize()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "\nBundle: %s\n", manifestPath)
			if failed > 0 {
				fmt.Fprintf(os.Stderr, "%d of %d collectors failed\n", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&useSink, "sink", false, "Ship reports to the configured Postgres sink")
	return cmd
}
