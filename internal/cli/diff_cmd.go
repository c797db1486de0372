package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/osiriscare/winaudit/internal/export"
	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/snapshot"
)

func newDiffCmd(opts *rootOptions) *cobra.Command {
	var keyColumn string

	cmd := &cobra.Command{
		Use:   "diff <report>",
		Short: "Compare the two most recent snapshots of a report",
		Long: `Compare the two most recent saved snapshots of a report for the target
host and list added, removed, and changed rows. Snapshots are recorded
with --save on the report commands or on audit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host := opts.target
			if host == "" {
				host = report.Hostname()
			}

			store, err := snapshot.Open(opts.cfg.SnapshotDBPath())
			if err != nil {
				return fmt.Errorf("open snapshot store: %w", err)
			}
			defer store.Close()

			older, newer, err := store.LastTwo(args[0], host)
			if err != nil {
				return err
			}

			changes := snapshot.Diff(older, newer, keyColumn)
			if len(changes) == 0 && opts.format == export.FormatTable && opts.output == "" {
				fmt.Fprintf(os.Stdout, "No changes in %s between %s and %s\n",
					args[0],
					older.CollectedAt.Format("2006-01-02 15:04"),
					newer.CollectedAt.Format("2006-01-02 15:04"))
				return nil
			}

			rep := snapshot.ToReport(args[0]+"-diff", host, changes)
			return export.WriteFile(rep, opts.format, opts.output)
		},
	}

	cmd.Flags().StringVar(&keyColumn, "key", "", "Column that identifies a row across runs (default: the report's first column)")
	return cmd
}
