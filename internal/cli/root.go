// Package cli implements the winaudit command line interface.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/osiriscare/winaudit/internal/config"
	"github.com/osiriscare/winaudit/internal/export"
	"github.com/osiriscare/winaudit/internal/pshell"
	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/snapshot"
	"github.com/osiriscare/winaudit/internal/winrm"
	"github.com/osiriscare/winaudit/internal/wql"
)

// Set at link time via -ldflags.
var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// rootOptions carries the persistent flag values plus the config resolved
// during PersistentPreRunE. Precedence: flag > environment > config file.
type rootOptions struct {
	configPath string
	target     string
	username   string
	password   string
	port       int
	useSSL     bool
	format     string
	output     string
	save       bool
	noColor    bool

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "winaudit",
		Short: "Windows audit toolkit",
		Long: `winaudit gathers administrative reports from Windows machines: services,
scheduled tasks, installed updates and applications, disks, listening
ports, firewall state, processes, shares, and host inventory. It also
resolves directory group membership (nested groups flattened, cycles
handled) against Microsoft Graph or on-prem Active Directory.

Reports run against the local machine by default; --target runs the same
collectors on a remote machine over WinRM.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			opts.cfg = cfg

			if opts.username == "" {
				opts.username = cfg.WinRM.Username
			}
			if opts.password == "" {
				opts.password = cfg.WinRM.Password
			}
			if !cmd.Flags().Changed("port") {
				opts.port = cfg.WinRM.Port
			}
			if !cmd.Flags().Changed("ssl") {
				opts.useSSL = cfg.WinRM.UseSSL
			}

			if opts.noColor || opts.output != "" {
				color.NoColor = true
			}

			switch opts.format {
			case export.FormatTable, export.FormatCSV, export.FormatJSON:
			default:
				return fmt.Errorf("unsupported format %q (supported: %s)",
					opts.format, strings.Join(export.Formats(), ", "))
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to the YAML config file")
	pf.StringVarP(&opts.target, "target", "t", "", "Remote hostname to audit over WinRM (default: local machine)")
	pf.StringVarP(&opts.username, "username", "u", "", "Username for the remote target")
	pf.StringVarP(&opts.password, "password", "p", "", "Password for the remote target")
	pf.IntVar(&opts.port, "port", 5985, "WinRM port")
	pf.BoolVar(&opts.useSSL, "ssl", false, "Use HTTPS for the WinRM transport")
	pf.StringVarP(&opts.format, "format", "f", export.FormatTable, "Output format (table, csv, json)")
	pf.StringVarP(&opts.output, "output", "o", "", "Write output to a file instead of stdout")
	pf.BoolVar(&opts.save, "save", false, "Record the report as a snapshot for later diffing")
	pf.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	for _, c := range newCollectorCmds(opts) {
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(newGroupMembersCmd(opts))
	rootCmd.AddCommand(newAuditCmd(opts))
	rootCmd.AddCommand(newDiffCmd(opts))
	rootCmd.AddCommand(newSnapshotsCmd(opts))
	rootCmd.AddCommand(newBundleCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// buildSource creates the query plumbing for the selected target. The
// cleanup func tears down any remote session; for local sources it is a
// no-op.
func (o *rootOptions) buildSource() (*report.Source, func(), error) {
	if o.target == "" {
		return &report.Source{
			Host:  report.Hostname(),
			WQL:   wql.Local{},
			Shell: pshell.Local{},
		}, func() {}, nil
	}

	if o.username == "" || o.password == "" {
		return nil, nil, fmt.Errorf("target %s needs credentials: --username/--password or the winrm config section", o.target)
	}

	target := &winrm.Target{
		Hostname:    o.target,
		Port:        o.port,
		Username:    o.username,
		Password:    o.password,
		UseSSL:      o.useSSL,
		VerifySSL:   o.cfg.WinRM.VerifySSL,
		TimeoutSecs: o.cfg.WinRM.TimeoutSecs,
	}
	executor := winrm.NewExecutor()
	runner := executor.Shell(target, winrm.Options{Retries: o.cfg.WinRM.Retries})
	src := &report.Source{
		Host:   o.target,
		Remote: true,
		WQL:    wql.NewRemote(runner),
		Shell:  runner,
	}
	return src, func() { executor.InvalidateSession(o.target) }, nil
}

// emit renders a single report to the selected output, recording a
// snapshot first when --save is on.
func (o *rootOptions) emit(rep *report.Report) error {
	if o.save {
		store, err := snapshot.Open(o.cfg.SnapshotDBPath())
		if err != nil {
			return fmt.Errorf("open snapshot store: %w", err)
		}
		defer store.Close()
		runID, err := store.Save(rep)
		if err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Saved snapshot %s\n", runID)
	}
	if err := export.WriteFile(rep, o.format, o.output); err != nil {
		return err
	}
	if o.output != "" {
		fmt.Printf("%s -> %s\n", export.Summary(rep), o.output)
	}
	return nil
}
