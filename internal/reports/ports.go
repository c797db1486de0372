package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"

	gnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// PortsCollector reports listening and established TCP endpoints with the
// owning process resolved from the process table. Locally it reads the
// connection table with gopsutil; remotely it joins MSFT_NetTCPConnection
// against Win32_Process by PID.
type PortsCollector struct{}

func (c *PortsCollector) Name() string { return "ports" }

func (c *PortsCollector) Synopsis() string {
	return "listening and established TCP ports with owning processes"
}

type tcpEndpoint struct {
	localAddr  string
	localPort  int64
	remoteAddr string
	remotePort int64
	state      string
	pid        int64
	process    string
}

func (c *PortsCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	var (
		endpoints []tcpEndpoint
		err       error
	)
	if src.Remote {
		endpoints, err = c.collectWQL(ctx, src)
	} else {
		endpoints, err = c.collectLocal(ctx)
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(endpoints, func(i, j int) bool {
		if endpoints[i].state != endpoints[j].state {
			return endpoints[i].state == "Listen"
		}
		if endpoints[i].localPort != endpoints[j].localPort {
			return endpoints[i].localPort < endpoints[j].localPort
		}
		return endpoints[i].localAddr < endpoints[j].localAddr
	})

	rep := report.New(c.Name(), src.Host,
		"LocalAddress", "LocalPort", "RemoteAddress", "RemotePort", "State", "PID", "Process")
	for _, e := range endpoints {
		row := report.Row{
			"LocalAddress": e.localAddr,
			"LocalPort":    fmt.Sprintf("%d", e.localPort),
			"State":        e.state,
			"PID":          fmt.Sprintf("%d", e.pid),
			"Process":      e.process,
		}
		if e.state != "Listen" {
			row["RemoteAddress"] = e.remoteAddr
			row["RemotePort"] = fmt.Sprintf("%d", e.remotePort)
		}
		rep.AddRow(row)
	}
	return rep, nil
}

func (c *PortsCollector) collectLocal(ctx context.Context) ([]tcpEndpoint, error) {
	conns, err := gnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}

	names := make(map[int32]string)
	var endpoints []tcpEndpoint
	for _, conn := range conns {
		state := canonicalTCPState(conn.Status)
		if state == "" {
			continue
		}
		e := tcpEndpoint{
			localAddr:  conn.Laddr.IP,
			localPort:  int64(conn.Laddr.Port),
			remoteAddr: conn.Raddr.IP,
			remotePort: int64(conn.Raddr.Port),
			state:      state,
			pid:        int64(conn.Pid),
		}
		if conn.Pid > 0 {
			name, ok := names[conn.Pid]
			if !ok {
				if p, err := process.NewProcessWithContext(ctx, conn.Pid); err == nil {
					name, _ = p.NameWithContext(ctx)
				}
				names[conn.Pid] = name
			}
			e.process = name
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

func (c *PortsCollector) collectWQL(ctx context.Context, src *report.Source) ([]tcpEndpoint, error) {
	conns, err := src.WQL.Query(ctx, wql.NamespaceStandard,
		"SELECT LocalAddress, LocalPort, RemoteAddress, RemotePort, State, OwningProcess FROM MSFT_NetTCPConnection")
	if err != nil {
		return nil, err
	}

	procs, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT ProcessId, Name FROM Win32_Process")
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(procs))
	for _, row := range procs {
		pid, ok := row.Int("ProcessId")
		if !ok {
			continue
		}
		names[pid], _ = row.Str("Name")
	}

	var endpoints []tcpEndpoint
	for _, row := range conns {
		stateCode, _ := row.Int("State")
		state := msftTCPState(stateCode)
		if state != "Listen" && state != "Established" {
			continue
		}
		e := tcpEndpoint{state: state}
		e.localAddr, _ = row.Str("LocalAddress")
		e.localPort, _ = row.Int("LocalPort")
		e.remoteAddr, _ = row.Str("RemoteAddress")
		e.remotePort, _ = row.Int("RemotePort")
		e.pid, _ = row.Int("OwningProcess")
		e.process = names[e.pid]
		endpoints = append(endpoints, e)
	}
	return endpoints, nil
}

// canonicalTCPState trims the connection table's state vocabulary down to
// the two this report cares about. Everything else drops out.
func canonicalTCPState(status string) string {
	switch {
	case strings.EqualFold(status, "LISTEN"):
		return "Listen"
	case strings.HasPrefix(strings.ToUpper(status), "ESTAB"):
		return "Established"
	}
	return ""
}

// msftTCPState maps the MSFT_NetTCPConnection State enum.
func msftTCPState(code int64) string {
	switch code {
	case 1:
		return "Closed"
	case 2:
		return "Listen"
	case 3:
		return "SynSent"
	case 4:
		return "SynReceived"
	case 5:
		return "Established"
	case 6:
		return "FinWait1"
	case 7:
		return "FinWait2"
	case 8:
		return "CloseWait"
	case 9:
		return "Closing"
	case 10:
		return "LastAck"
	case 11:
		return "TimeWait"
	case 12:
		return "DeleteTCB"
	}
	return fmt.Sprintf("State%d", code)
}
