package smart

import (
	"encoding/json"
	"strings"

	"github.com/disktools/diskwatch/internal/models"
)

// SmartctlData is the relevant subset of `smartctl -a --json` output.
// Optional sections are pointers so absence survives decoding; smartctl
// output varies a lot between versions and device protocols.
type SmartctlData struct {
	Device struct {
		Name     string `json:"name"`
		Type     string `json:"type"`
		Protocol string `json:"protocol"`
	} `json:"device"`
	ModelFamily     string `json:"model_family"`
	ModelName       string `json:"model_name"`
	SerialNumber    string `json:"serial_number"`
	FirmwareVersion string `json:"firmware_version"`
	RotationRate    *int   `json:"rotation_rate"`
	UserCapacity    *struct {
		Bytes uint64 `json:"bytes"`
	} `json:"user_capacity"`
	SmartStatus *struct {
		Passed bool `json:"passed"`
	} `json:"smart_status"`
	Temperature *struct {
		Current float64 `json:"current"`
	} `json:"temperature"`
	PowerOnTime *struct {
		Hours int64 `json:"hours"`
	} `json:"power_on_time"`
	PowerCycleCount    *int64 `json:"power_cycle_count"`
	ATASmartAttributes *struct {
		Table []ATAAttribute `json:"table"`
	} `json:"ata_smart_attributes"`
	NVMeHealthLog *struct {
		CriticalWarning int64    `json:"critical_warning"`
		Temperature     *float64 `json:"temperature"`
		AvailableSpare  *int64   `json:"available_spare"`
		PercentageUsed  *int64   `json:"percentage_used"`
		MediaErrors     *int64   `json:"media_errors"`
		UnsafeShutdowns *int64   `json:"unsafe_shutdowns"`
	} `json:"nvme_smart_health_information_log"`
}

// ATAAttribute is one row of the ATA SMART attribute table.
type ATAAttribute struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Value      int    `json:"value"`
	Worst      int    `json:"worst"`
	Thresh     int    `json:"thresh"`
	WhenFailed string `json:"when_failed"`
	Raw        struct {
		Value  int64  `json:"value"`
		String string `json:"string"`
	} `json:"raw"`
}

// ParseSmartctl decodes smartctl JSON output.
func ParseSmartctl(out []byte) (*SmartctlData, error) {
	var data SmartctlData
	if err := json.Unmarshal(out, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Merge fills the record's SMART fields from smartctl output. udisks
// values already on the record win for identity fields; smartctl fills
// the gaps and supplies the attribute table for non-udisks hosts.
func (d *SmartctlData) Merge(rec *models.DeviceRecord) {
	if rec.Model == "" {
		if d.ModelName != "" {
			rec.Model = d.ModelName
		} else {
			rec.Model = d.ModelFamily
		}
	}
	if rec.Serial == "" {
		rec.Serial = d.SerialNumber
	}
	if rec.Firmware == "" {
		rec.Firmware = d.FirmwareVersion
	}
	if rec.Type == "" {
		rec.Type = d.deviceType(rec.Device)
	}
	if rec.CapacityBytes == nil && d.UserCapacity != nil {
		capacity := d.UserCapacity.Bytes
		rec.CapacityBytes = &capacity
	}

	if d.SmartStatus != nil {
		passed := d.SmartStatus.Passed
		rec.SmartPassed = &passed
	}
	if d.Temperature != nil {
		temp := d.Temperature.Current
		rec.Temperature = &temp
	}
	if d.PowerOnTime != nil {
		hours := d.PowerOnTime.Hours
		rec.PowerOnHours = &hours
	}

	if attrs := d.attributeTable(); len(attrs) > 0 {
		if rec.Smart.State == models.SectionPresent {
			// udisks already contributed attributes; extend, keep existing.
			for k, v := range attrs {
				if _, exists := rec.Smart.Attributes[k]; !exists {
					rec.Smart.Attributes[k] = v
				}
			}
		} else {
			rec.Smart = models.PresentSection(attrs)
		}
	}
}

// attributeTable flattens ATA and NVMe attributes into one key→value map.
// ATA rows are keyed by attribute name with their raw value, matching how
// operators quote them (Reallocated_Sector_Ct etc).
func (d *SmartctlData) attributeTable() map[string]any {
	attrs := make(map[string]any)

	if d.ATASmartAttributes != nil {
		for _, row := range d.ATASmartAttributes.Table {
			if row.Name == "" {
				continue
			}
			attrs[row.Name] = row.Raw.Value
			if row.WhenFailed != "" {
				attrs[row.Name+".failed"] = row.WhenFailed
			}
		}
	}

	if log := d.NVMeHealthLog; log != nil {
		attrs["critical_warning"] = log.CriticalWarning
		if log.PercentageUsed != nil {
			attrs["percentage_used"] = *log.PercentageUsed
		}
		if log.AvailableSpare != nil {
			attrs["available_spare"] = *log.AvailableSpare
		}
		if log.MediaErrors != nil {
			attrs["media_errors"] = *log.MediaErrors
		}
		if log.UnsafeShutdowns != nil {
			attrs["unsafe_shutdowns"] = *log.UnsafeShutdowns
		}
	}

	if d.PowerCycleCount != nil {
		attrs["power_cycle_count"] = *d.PowerCycleCount
	}

	if len(attrs) == 0 {
		return nil
	}
	return attrs
}

// deviceType classifies the device the way smartctl reports it: NVMe by
// protocol or name, otherwise SSD/HDD by rotation rate.
func (d *SmartctlData) deviceType(device string) string {
	if strings.EqualFold(d.Device.Protocol, "NVMe") || strings.Contains(device, "nvme") {
		return "NVMe"
	}
	if d.RotationRate != nil {
		if *d.RotationRate == 0 {
			return "SSD"
		}
		return "HDD"
	}
	return ""
}
