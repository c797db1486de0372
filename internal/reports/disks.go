package reports

import (
	"context"
	"fmt"
	"log"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/osiriscare/winaudit/internal/report"
	"github.com/osiriscare/winaudit/internal/wql"
)

// lowSpaceRatio flags volumes below this fraction of free space.
const lowSpaceRatio = 0.10

// DisksCollector reports fixed-disk capacity and free space. Locally it
// walks mounted partitions with gopsutil; remotely it queries
// Win32_LogicalDisk for fixed disks (DriveType 3).
type DisksCollector struct{}

func (c *DisksCollector) Name() string { return "disks" }

func (c *DisksCollector) Synopsis() string {
	return "fixed disk capacity, free space, and low-space flags"
}

func (c *DisksCollector) Collect(ctx context.Context, src *report.Source) (*report.Report, error) {
	rep := report.New(c.Name(), src.Host,
		"Drive", "Label", "FileSystem", "SizeGB", "FreeGB", "UsedPct", "Flag")

	if src.Remote {
		if err := c.collectWQL(ctx, src, rep); err != nil {
			return nil, err
		}
	} else {
		if err := c.collectLocal(ctx, rep); err != nil {
			return nil, err
		}
	}
	rep.Sort("Drive")
	return rep, nil
}

func (c *DisksCollector) collectWQL(ctx context.Context, src *report.Source, rep *report.Report) error {
	rows, err := src.WQL.Query(ctx, wql.NamespaceCIMv2,
		"SELECT DeviceID, VolumeName, FileSystem, Size, FreeSpace FROM Win32_LogicalDisk WHERE DriveType = 3")
	if err != nil {
		return err
	}
	for _, row := range rows {
		drive, _ := row.Str("DeviceID")
		label, _ := row.Str("VolumeName")
		fs, _ := row.Str("FileSystem")
		size, _ := row.Int("Size")
		free, _ := row.Int("FreeSpace")
		rep.AddRow(diskRow(drive, label, fs, uint64(size), uint64(free)))
	}
	return nil
}

func (c *DisksCollector) collectLocal(ctx context.Context, rep *report.Report) error {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return fmt.Errorf("list partitions: %w", err)
	}
	for _, p := range partitions {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			log.Printf("[disks] usage for %s failed: %v", p.Mountpoint, err)
			continue
		}
		rep.AddRow(diskRow(p.Mountpoint, "", p.Fstype, usage.Total, usage.Free))
	}
	return nil
}

func diskRow(drive, label, fs string, size, free uint64) report.Row {
	row := report.Row{
		"Drive":      drive,
		"Label":      label,
		"FileSystem": fs,
		"SizeGB":     gb(size),
		"FreeGB":     gb(free),
	}
	if size > 0 {
		used := float64(size-free) / float64(size) * 100
		row["UsedPct"] = fmt.Sprintf("%.1f", used)
		if float64(free)/float64(size) < lowSpaceRatio {
			row["Flag"] = "low space"
		}
	}
	return row
}

func gb(bytes uint64) string {
	return fmt.Sprintf("%.1f", float64(bytes)/(1<<30))
}
