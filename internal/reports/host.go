package reports

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/osiriscare/winaudit/internal/discovery"
	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// HostCollector builds the host inventory as property/value pairs:
// platform and build, hardware identity, memory, domain membership, and
// boot time. Locally gopsutil carries the core rows and CIM fills in
// hardware identity where available; remotely everything comes from
// Win32_ComputerSystem, Win32_OperatingSystem, and Win32_BIOS.
type HostCollector struct{}

func (c *HostCollector) Name() string { return "host" }

func (c *HostCollector) Synopsis() string {
	return "host inventory: platform, hardware, memory, domain, uptime"
}

func (c *HostCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	rep := report.New(c.Name(), src.Host, "Property", "Value")
	if src.Remote {
		if err := c.collectWQL(ctx, src, rep); err != nil {
			return nil, err
		}
		return rep, nil
	}
	if err := c.collectLocal(ctx, src, rep); err != nil {
		return nil, err
	}
	return rep, nil
}

func (c *HostCollector) collectLocal(ctx context.Context, src *report.Source, rep *report.Report) error {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return fmt.Errorf("host info: %w", err)
	}

	addProp(rep, "Hostname", info.Hostname)
	addProp(rep, "OS", fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion))
	addProp(rep, "Kernel", info.KernelVersion)
	addProp(rep, "Architecture", info.KernelArch)
	addProp(rep, "BootTime", time.Unix(int64(info.BootTime), 0).UTC().Format("2006-01-02 15:04:05"))
	addProp(rep, "Uptime", fmt.Sprintf("%dd %dh", info.Uptime/86400, info.Uptime%86400/3600))

	// CIM hardware identity only exists on Windows; off-Windows the
	// gopsutil rows above are the whole report.
	if err := c.addCIMRows(ctx, src, rep, false); err != nil {
		if !errors.Is(err, wql.ErrUnsupported) {
			log.Printf("[host] hardware inventory failed: %v", err)
		}
	}

	if domain, _ := findProp(rep, "Domain"); domain == "" {
		if d := discovery.DiscoverDomain(ctx); d != "" {
			addProp(rep, "Domain", d)
		}
	}
	return nil
}

func (c *HostCollector) collectWQL(ctx context.Context, src *report.Source, rep *report.Report) error {
	return c.addCIMRows(ctx, src, rep, true)
}

// addCIMRows merges the three inventory classes into the report. With
// full set, the computer system class is required and the other two are
// best-effort; otherwise every class is best-effort supplements.
func (c *HostCollector) addCIMRows(ctx context.Context, src *report.Source, rep *report.Report, full bool) error {
	cs, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT Name, Manufacturer, Model, Domain, PartOfDomain, TotalPhysicalMemory FROM Win32_ComputerSystem")
	if err != nil {
		return err
	}
	if len(cs) > 0 {
		row := cs[0]
		if full {
			if name, ok := row.Str("Name"); ok {
				addProp(rep, "Hostname", name)
			}
		}
		if os, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
			"SELECT Caption, Version, BuildNumber, OSArchitecture, LastBootUpTime FROM Win32_OperatingSystem"); err != nil {
			log.Printf("[host] operating system query failed: %v", err)
		} else if len(os) > 0 {
			osRow := os[0]
			if full {
				if caption, ok := osRow.Str("Caption"); ok {
					addProp(rep, "OS", caption)
				}
				if version, ok := osRow.Str("Version"); ok {
					addProp(rep, "Version", version)
				}
				if build, ok := osRow.Str("BuildNumber"); ok {
					addProp(rep, "Build", build)
				}
				if arch, ok := osRow.Str("OSArchitecture"); ok {
					addProp(rep, "Architecture", arch)
				}
				if boot, ok := osRow.Time("LastBootUpTime"); ok {
					addProp(rep, "BootTime", boot.UTC().Format("2006-01-02 15:04:05"))
					up := time.Since(boot)
					addProp(rep, "Uptime", fmt.Sprintf("%dd %dh", int(up.Hours())/24, int(up.Hours())%24))
				}
			}
		}

		if manufacturer, ok := row.Str("Manufacturer"); ok {
			addProp(rep, "Manufacturer", manufacturer)
		}
		if model, ok := row.Str("Model"); ok {
			addProp(rep, "Model", model)
		}
		if mem, ok := row.Int("TotalPhysicalMemory"); ok && mem > 0 {
			addProp(rep, "MemoryGB", gb(uint64(mem)))
		}
		if joined, ok := row.Bool("PartOfDomain"); ok && joined {
			if domain, ok := row.Str("Domain"); ok {
				addProp(rep, "Domain", domain)
			}
		}
	}

	if bios, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT SerialNumber, SMBIOSBIOSVersion FROM Win32_BIOS"); err != nil {
		log.Printf("[host] BIOS query failed: %v", err)
	} else if len(bios) > 0 {
		if serial, ok := bios[0].Str("SerialNumber"); ok {
			addProp(rep, "SerialNumber", serial)
		}
		if version, ok := bios[0].Str("SMBIOSBIOSVersion"); ok {
			addProp(rep, "BIOSVersion", version)
		}
	}
	return nil
}

func addProp(rep *report.Report, property, value string) {
	rep.AddRow(report.Row{"Property": property, "Value": value})
}

func findProp(rep *report.Report, property string) (string, bool) {
	for _, row := range rep.Rows {
		if row["Property"] == property {
			return row["Value"], true
		}
	}
	return "", false
}
