package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/reports"
	"github.com/osiriscare/winaudit/internal/smb"
)

// newCollectorCmds builds one subcommand per registered collector, in
// registration order.
func newCollectorCmds(opts *rootOptions) []*cobra.Command {
	reg := reports.DefaultRegistry()
	names := reg.Names()
	cmds := make([]*cobra.Command, 0, len(names))
	for _, name := range names {
		collector, _ := reg.Get(name)
		cmds = append(cmds, newCollectorCmd(opts, collector))
	}
	return cmds
}

func newCollectorCmd(opts *rootOptions, collector report.Collector) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   collector.Name(),
		Short: collector.Synopsis(),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if probe {
				sc := collector.(*reports.SharesCollector)
				creds, err := opts.probeCredentials()
				if err != nil {
					return err
				}
				sc.Probe = creds
			}

			src, cleanup, err := opts.buildSource()
			if err != nil {
				return err
			}
			defer cleanup()

			rep, err := collector.Collect(cmd.Context(), src)
			if err != nil {
				return fmt.Errorf("%s: %w", collector.Name(), err)
			}
			return opts.emit(rep)
		},
	}

	// Only the shares collector can connect back over SMB.
	if _, ok := collector.(*reports.SharesCollector); ok {
		cmd.Flags().BoolVar(&probe, "probe", false, "Connect to each share over SMB and report access")
	}
	return cmd
}

// probeCredentials builds SMB credentials from the remote username, which
// may carry a DOMAIN\user prefix.
func (o *rootOptions) probeCredentials() (*smb.Credentials, error) {
	if o.username == "" || o.password == "" {
		return nil, errors.New("--probe needs --username and --password")
	}
	creds := &smb.Credentials{Username: o.username, Password: o.password}
	if i := strings.Index(o.username, `\`); i >= 0 {
		creds.Domain = o.username[:i]
		creds.Username = o.username[i+1:]
	}
	return creds, nil
}
