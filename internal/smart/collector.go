package smart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
	"github.com/disktools/diskwatch/internal/system"
)

// Collector captures raw tool output for every discovered device and
// normalizes it into DeviceRecords. Each device's parse is independent;
// records only meet again at the join barrier before the report.
type Collector struct {
	cfg    *config.Settings
	runner Runner

	// Discovery hooks, replaced in tests.
	partitions func() ([]system.Partition, error)
	physical   func() ([]system.Partition, error)
	usage      func(string) (*models.Usage, error)
}

// NewCollector builds a Collector for the given configuration. DRY_RUN
// swaps the exec runner for recorded fixtures.
func NewCollector(cfg *config.Settings) *Collector {
	var runner Runner
	if cfg.DryRun {
		runner = NewFixtureRunner(cfg.SampleDump, cfg.SampleSmartctl)
	} else {
		runner = NewRunner(cfg.ToolTimeout)
	}
	return &Collector{
		cfg:        cfg,
		runner:     runner,
		partitions: system.DataPartitions,
		physical:   system.PhysicalDisks,
		usage:      system.Usage,
	}
}

// Collect discovers devices, captures udisksctl and smartctl output, and
// returns one normalized record per device in discovery order. Capture
// failures degrade individual records; Collect itself never fails.
func (c *Collector) Collect(ctx context.Context) []models.DeviceRecord {
	parts := c.discoverPartitions()
	dump := c.captureDump(ctx)

	var records []*models.DeviceRecord
	byDrive := make(map[string]*models.DeviceRecord)
	byDevice := make(map[string]*models.DeviceRecord)

	for _, p := range parts {
		if rec := c.joinPartition(dump, p, byDrive, byDevice); rec != nil {
			records = append(records, rec)
		}
	}

	// Drives the dump knows about but no mounted block device references:
	// kept in the report, marked unavailable.
	if dump != nil {
		for _, id := range unreferencedDrives(dump, byDrive) {
			drive := dump.Drives[id]
			rec := &models.DeviceRecord{
				DriveID: id,
				Model:   drive.Info["Model"],
				Serial:  drive.Info["Serial"],
				Smart:   models.AbsentSection(),
			}
			rec.Unavailable(fmt.Errorf("drive %s has no mounted block device", id))
			log.Warn().Str("drive", id).Msg("Unmounted drive found")
			records = append(records, rec)
		}
	}

	c.enrichAll(ctx, records)

	out := make([]models.DeviceRecord, len(records))
	for i, rec := range records {
		out[i] = *rec
	}
	return out
}

func (c *Collector) discoverPartitions() []system.Partition {
	parts, err := c.partitions()
	if err != nil {
		log.Warn().Err(err).Msg("Partition discovery failed, falling back to physical disks")
	}
	if len(parts) > 0 {
		return parts
	}

	physical, err := c.physical()
	if err != nil {
		log.Error().Err(err).Msg("Physical disk discovery failed")
		return nil
	}
	// IO-counter ordering is a map walk; sort for a stable report.
	sort.Slice(physical, func(i, j int) bool { return physical[i].Device < physical[j].Device })
	return physical
}

// captureDump runs `udisksctl dump` once per collection. A failure here
// is not fatal: devices are still reported with SMART fields null.
func (c *Collector) captureDump(ctx context.Context) *Dump {
	if c.cfg.UdiskLib == "" {
		return nil
	}
	out, err := c.runner.Run(ctx, c.cfg.UdiskLib, "dump")
	if err != nil {
		if errors.Is(err, ErrToolNotFound) {
			log.Debug().Str("tool", c.cfg.UdiskLib).Msg("udisksctl not available, using smartctl only")
		} else {
			log.Error().Err(err).Msg("udisksctl dump failed")
		}
		return nil
	}
	return ParseDump(string(out))
}

// joinPartition resolves one partition against the dump and either folds
// it into an existing record (same drive or physical device) or starts a
// new one. Returns nil when the partition was folded in.
func (c *Collector) joinPartition(dump *Dump, p system.Partition, byDrive, byDevice map[string]*models.DeviceRecord) *models.DeviceRecord {
	if dump != nil {
		if blk := dump.Block(path.Base(p.Device)); blk != nil && blk.Drive != "" {
			if existing := byDrive[blk.Drive]; existing != nil {
				existing.Mountpoints = append(existing.Mountpoints, p.Mountpoint)
				return nil
			}
			rec := c.recordFromUdisks(dump, blk, p)
			byDrive[blk.Drive] = rec
			byDevice[rec.Device] = rec
			return rec
		}
	}

	device := physicalDevice(p.Device)
	if existing := byDevice[device]; existing != nil {
		existing.Mountpoints = append(existing.Mountpoints, p.Mountpoint)
		return nil
	}

	// No dump entry for this partition: keep the device, SMART stays
	// absent until (possibly) smartctl fills it in.
	rec := &models.DeviceRecord{
		Device:      device,
		Status:      models.StatusOK,
		Smart:       models.AbsentSection(),
		Mountpoints: []string{p.Mountpoint},
	}
	c.attachUsage(rec, p.Mountpoint)
	byDevice[device] = rec
	return rec
}

// recordFromUdisks normalizes one drive+block pair into a DeviceRecord.
func (c *Collector) recordFromUdisks(dump *Dump, blk *DumpBlock, p system.Partition) *models.DeviceRecord {
	rec := &models.DeviceRecord{
		Device:      physicalDevice(p.Device),
		DriveID:     blk.Drive,
		Status:      models.StatusOK,
		Smart:       models.AbsentSection(),
		Mountpoints: []string{p.Mountpoint},
	}
	c.attachUsage(rec, p.Mountpoint)

	drive := dump.DriveForBlock(blk)
	if drive == nil {
		// Unresolved cross-reference: the device stays in the report with
		// SMART fields null rather than being dropped.
		log.Warn().Str("device", rec.Device).Str("drive", blk.Drive).Msg("Block device references unknown drive")
		return rec
	}

	rec.Model = drive.Info["Model"]
	rec.Serial = drive.Info["Serial"]
	rec.Firmware = drive.Info["Revision"]
	if size, err := strconv.ParseUint(drive.Info["Size"], 10, 64); err == nil {
		rec.CapacityBytes = &size
	}
	if rate, err := strconv.ParseInt(drive.Info["RotationRate"], 10, 64); err == nil {
		if rate == 0 {
			rec.Type = "SSD"
		} else {
			rec.Type = "HDD"
		}
	}

	attrs := drive.Attributes()
	if len(attrs) == 0 {
		return rec
	}
	rec.Smart = models.PresentSection(attrs)

	if failing, ok := attrs["SmartFailing"].(bool); ok {
		passed := !failing
		rec.SmartPassed = &passed
	}
	if kelvin, ok := attrs["SmartTemperature"].(float64); ok && kelvin > 0 {
		celsius := kelvinToCelsius(kelvin)
		rec.Temperature = &celsius
	}
	if secs, ok := attrs["SmartPowerOnSeconds"].(int64); ok {
		hours := secs / 3600
		rec.PowerOnHours = &hours
	}
	return rec
}

func (c *Collector) attachUsage(rec *models.DeviceRecord, mountpoint string) {
	u, err := c.usage(mountpoint)
	if err != nil {
		log.Warn().Err(err).Str("mountpoint", mountpoint).Msg("Usage lookup failed")
		return
	}
	rec.Usage = u
}

// enrichAll fans smartctl out across devices. Every record is owned by
// exactly one goroutine; the Wait is the join barrier before assembly.
func (c *Collector) enrichAll(ctx context.Context, records []*models.DeviceRecord) {
	if c.cfg.SmartLib == "" {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(records) + 1)
	for _, rec := range records {
		if rec.Status == models.StatusUnavailable || rec.Device == "" {
			continue
		}
		rec := rec
		g.Go(func() error {
			c.enrichSmartctl(gctx, rec)
			return nil
		})
	}
	_ = g.Wait()
}

// enrichSmartctl merges one device's smartctl output into its record.
func (c *Collector) enrichSmartctl(ctx context.Context, rec *models.DeviceRecord) {
	out, err := c.runner.Run(ctx, c.cfg.SmartLib, "-a", rec.Device, "--json")
	if err != nil {
		switch {
		case errors.Is(err, ErrToolTimeout):
			log.Error().Err(err).Str("device", rec.Device).Msg("smartctl timed out")
			rec.Unavailable(err)
		case errors.Is(err, ErrToolNotFound):
			log.Debug().Str("tool", c.cfg.SmartLib).Msg("smartctl not available")
		case rec.Smart.State == models.SectionPresent:
			// udisks already supplied SMART data; keep it.
			log.Warn().Err(err).Str("device", rec.Device).Msg("smartctl failed, keeping udisks data")
		default:
			log.Error().Err(err).Str("device", rec.Device).Msg("smartctl failed")
			rec.Unavailable(err)
		}
		return
	}

	data, perr := ParseSmartctl(out)
	if perr != nil {
		log.Error().Err(perr).Str("device", rec.Device).Msg("Failed to decode smartctl output")
		if rec.Smart.State != models.SectionPresent {
			rec.Smart = models.UnparseableSection(truncate(string(out), 4096))
		}
		return
	}

	// Identity cross-check: a serial mismatch means the output belongs to
	// some other drive, so refuse the merge rather than mis-associate.
	if rec.Serial != "" && data.SerialNumber != "" && rec.Serial != data.SerialNumber {
		log.Warn().
			Str("device", rec.Device).
			Str("drive_serial", rec.Serial).
			Str("smartctl_serial", data.SerialNumber).
			Msg("Serial mismatch, discarding smartctl data")
		return
	}

	data.Merge(rec)
}

var partSuffix = regexp.MustCompile(`(p\d+|s\d+)$`)

// physicalDevice maps a partition path to its parent disk:
// /dev/sda1 -> /dev/sda, /dev/nvme0n1p2 -> /dev/nvme0n1,
// /dev/mmcblk0p1 -> /dev/mmcblk0, /dev/disk0s2 -> /dev/disk0.
func physicalDevice(dev string) string {
	dir, base := path.Split(dev)
	switch {
	case strings.HasPrefix(base, "nvme"), strings.HasPrefix(base, "mmcblk"), strings.HasPrefix(base, "disk"):
		base = partSuffix.ReplaceAllString(base, "")
	default:
		for len(base) > 1 && base[len(base)-1] >= '0' && base[len(base)-1] <= '9' {
			base = base[:len(base)-1]
		}
	}
	return dir + base
}

// kelvinToCelsius converts the Kelvin temperatures udisks reports.
func kelvinToCelsius(kelvin float64) float64 {
	return math.Round(kelvin - 273.15)
}

func unreferencedDrives(dump *Dump, byDrive map[string]*models.DeviceRecord) []string {
	var ids []string
	for id := range dump.Drives {
		if _, ok := byDrive[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
