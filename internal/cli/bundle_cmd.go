package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/osiriscare/winaudit/internal/bundle"
)

func newBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Work with audit bundles",
	}
	cmd.AddCommand(newBundleVerifyCmd())
	return cmd
}

func newBundleVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir>",
		Short: "Check a bundle's checksums and signature",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := bundle.Verify(args[0])
			if err != nil {
				return err
			}

			signed := "unsigned"
			if manifest.Signature != "" {
				signed = "signed"
			}
			fmt.Fprintf(os.Stdout, "%s bundle %s from %s (%s, %d files)\n",
				color.GreenString("✓"), manifest.RunID, manifest.Host, signed, len(manifest.Files))
			for _, f := range manifest.Files {
				fmt.Fprintf(os.Stdout, "  %-20s %6d rows  %s\n", f.Name, f.Rows, f.SHA256[:12])
			}
			return nil
		},
	}
}
