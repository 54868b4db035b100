// Package system discovers disk partitions and filesystem usage,
// filtering out pseudo filesystems and system mounts.
package system

import (
	"strings"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/disktools/diskwatch/internal/models"
)

// Partition is one candidate data partition discovered on the host.
type Partition struct {
	Device     string `json:"device"`     // e.g. /dev/sda1
	Mountpoint string `json:"mountpoint"` // e.g. /data
	Fstype     string `json:"fstype"`
}

// systemMountpoints are mount prefixes that never hold user data and are
// excluded from monitoring.
var systemMountpoints = []string{
	"/sys",
	"/proc",
	"/dev",
	"/run",
	"/boot",
	"/tmp",
	"/var",
	"/snap",
	"/sys/kernel",
	"/sys/fs",
	"/var/lib/docker",
	"/dev/loop",
	"/run/user",
	"/run/snapd",
	"/System/Volumes",
}

// systemFstypes are pseudo and overlay filesystems excluded from monitoring.
var systemFstypes = map[string]struct{}{
	"sysfs":       {},
	"proc":        {},
	"devtmpfs":    {},
	"tmpfs":       {},
	"devpts":      {},
	"fusectl":     {},
	"securityfs":  {},
	"overlay":     {},
	"hugetlbfs":   {},
	"debugfs":     {},
	"cgroup2":     {},
	"configfs":    {},
	"bpf":         {},
	"binfmt_misc": {},
	"efivarfs":    {},
	"fuse":        {},
	"nsfs":        {},
	"squashfs":    {},
	"autofs":      {},
	"tracefs":     {},
	"pstore":      {},
}

// IsDataPartition reports whether a partition should be monitored.
func IsDataPartition(p Partition) bool {
	for _, mnt := range systemMountpoints {
		if strings.HasPrefix(p.Mountpoint, mnt) {
			return false
		}
	}
	if _, ok := systemFstypes[p.Fstype]; ok {
		return false
	}
	return !strings.Contains(p.Mountpoint, "Recovery")
}

// DataPartitions returns mounted partitions worth monitoring, in the
// order the OS reports them.
func DataPartitions() ([]Partition, error) {
	parts, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}

	var out []Partition
	for _, p := range parts {
		candidate := Partition{Device: p.Device, Mountpoint: p.Mountpoint, Fstype: p.Fstype}
		if IsDataPartition(candidate) {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// PhysicalDisks is the fallback discovery path when no mounted data
// partition qualifies: disks with non-zero write counters are assumed to
// be physical drives. Usage is attributed to the root filesystem.
func PhysicalDisks() ([]Partition, error) {
	counters, err := disk.IOCounters()
	if err != nil {
		return nil, err
	}

	var out []Partition
	for name, io := range counters {
		if io.WriteBytes == 0 || io.WriteCount == 0 {
			continue
		}
		out = append(out, Partition{
			Device:     "/dev/" + name,
			Mountpoint: "/",
		})
	}
	return out, nil
}

// Usage returns filesystem usage for a mountpoint. A failed lookup is
// non-fatal for the run; callers keep the device with nil usage.
func Usage(mountpoint string) (*models.Usage, error) {
	u, err := disk.Usage(mountpoint)
	if err != nil {
		return nil, err
	}
	return &models.Usage{
		Total:   u.Total,
		Used:    u.Used,
		Free:    u.Free,
		Percent: u.UsedPercent,
	}, nil
}
