package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/osiriscare/winaudit/internal/directory"
	"github.com/osiriscare/winaudit/internal/discovery"
	"github.com/osiriscare/winaudit/internal/report"
)

func newGroupMembersCmd(opts *rootOptions) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "group-members <group>",
		Short: "Resolve a directory group to its flattened membership",
		Long: `Resolve a group by display name and list every member it contains,
expanding nested groups. Each user, device, and service principal appears
once no matter how many paths lead to it, and membership cycles do not
recurse. Devices list their owning user when the directory records one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, closeClient, err := opts.directoryClient(cmd.Context(), source)
			if err != nil {
				return err
			}
			defer closeClient()

			members, err := directory.NewResolver(client).ResolveByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			rep := report.New("group-members", args[0],
				"Name", "Kind", "UserPrincipalName", "PrimaryUser", "Id")
			for _, m := range members {
				rep.AddRow(report.Row{
					"Name":              m.Name,
					"Kind":              m.Kind.String(),
					"UserPrincipalName": m.UserPrincipalName,
					"PrimaryUser":       m.PrimaryUser,
					"Id":                m.ID,
				})
			}
			return opts.emit(rep)
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "Directory source: graph or ldap (default: graph when configured, else ldap)")
	return cmd
}

// directoryClient picks the directory backend. Graph wins when configured
// unless --source says otherwise. LDAP falls back to SRV discovery of a
// domain controller when no URL is configured.
func (o *rootOptions) directoryClient(ctx context.Context, source string) (directory.Client, func(), error) {
	if source == "" {
		if o.cfg.Graph.Configured() {
			source = "graph"
		} else {
			source = "ldap"
		}
	}

	switch source {
	case "graph":
		if !o.cfg.Graph.Configured() {
			return nil, nil, errors.New("graph is not configured: set graph.tenant_id, client_id, and client_secret")
		}
		g := o.cfg.Graph
		return directory.NewGraphClient(g.TenantID, g.ClientID, g.ClientSecret), func() {}, nil

	case "ldap":
		l := o.cfg.LDAP
		url := l.URL
		baseDN := l.BaseDN
		if url == "" {
			domain := discovery.DiscoverDomain(ctx)
			if domain == "" {
				return nil, nil, errors.New("no ldap.url configured and this machine is not domain-joined")
			}
			dc, err := discovery.DomainControllerWithRetry(domain, discovery.MaxRetries)
			if err != nil {
				return nil, nil, fmt.Errorf("locate a domain controller for %s: %w", domain, err)
			}
			url = "ldap://" + dc
			if baseDN == "" {
				baseDN = baseDNFromDomain(domain)
			}
		}
		if baseDN == "" {
			return nil, nil, errors.New("ldap.base_dn is required with an explicit ldap.url")
		}
		client, err := directory.DialLDAP(url, baseDN, l.BindDN, l.Password)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown directory source %q (supported: graph, ldap)", source)
	}
}

// baseDNFromDomain turns a DNS domain into its default naming context,
// e.g. corp.example.com becomes DC=corp,DC=example,DC=com.
func baseDNFromDomain(domain string) string {
	labels := strings.Split(strings.Trim(domain, "."), ".")
	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		parts = append(parts, "DC="+label)
	}
	return strings.Join(parts, ",")
}
