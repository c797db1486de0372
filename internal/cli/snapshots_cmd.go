package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/osiriscare/winaudit/internal/export"
	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/snapshot"
)

func newSnapshotsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshots <report>",
		Short: "List the saved snapshots of a report",
		Long: `List the snapshot runs recorded with --save, newest first. By default
every host in the store is listed; --target narrows the listing to one
machine.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := snapshot.Open(opts.cfg.SnapshotDBPath())
			if err != nil {
				return fmt.Errorf("open snapshot store: %w", err)
			}
			defer store.Close()

			runs, err := store.Runs(args[0], opts.target)
			if err != nil {
				return err
			}

			rep := report.New("snapshots", report.Hostname(), "RunID", "Host", "CollectedAt", "Rows")
			for _, run := range runs {
				rep.AddRow(report.Row{
					"RunID":       run.ID,
					"Host":        run.Host,
					"CollectedAt": run.CollectedAt.Format(time.RFC3339),
					"Rows":        strconv.Itoa(run.RowCount),
				})
			}
			return export.WriteFile(rep, opts.format, opts.output)
		},
	}
}
