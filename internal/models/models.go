// Package models defines the shared data model for a monitoring run:
// per-device health records, threshold breaches, and the assembled report.
package models

import "time"

// =============================================================================
// Device records
// =============================================================================

// DeviceStatus indicates whether a device could be queried during capture.
type DeviceStatus string

const (
	StatusOK          DeviceStatus = "ok"
	StatusUnavailable DeviceStatus = "unavailable"
)

// SectionState describes how a SMART data section was obtained.
// Missing sections and unparseable tool output are modeled explicitly
// instead of being collapsed into empty maps.
type SectionState string

const (
	SectionPresent     SectionState = "present"
	SectionAbsent      SectionState = "absent"
	SectionUnparseable SectionState = "unparseable"
)

// SmartSection holds the SMART attribute table for one device.
// Attributes is populated only when State is SectionPresent; Raw keeps the
// original tool output when State is SectionUnparseable.
type SmartSection struct {
	State      SectionState   `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Raw        string         `json:"raw,omitempty"`
}

// PresentSection builds a SmartSection around a parsed attribute table.
func PresentSection(attrs map[string]any) SmartSection {
	return SmartSection{State: SectionPresent, Attributes: attrs}
}

// AbsentSection marks a device for which the tool returned no SMART data.
func AbsentSection() SmartSection {
	return SmartSection{State: SectionAbsent}
}

// UnparseableSection retains raw output that could not be decoded.
func UnparseableSection(raw string) SmartSection {
	return SmartSection{State: SectionUnparseable, Raw: raw}
}

// Attribute returns the named SMART attribute, or nil when the section is
// not present or the attribute is missing.
func (s SmartSection) Attribute(name string) any {
	if s.State != SectionPresent {
		return nil
	}
	return s.Attributes[name]
}

// Usage holds filesystem usage for a mounted device.
type Usage struct {
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
}

// DeviceRecord is the normalized health record for one device.
// Optional metrics are pointers: nil means "not reported by the tool",
// which is distinct from a legitimate zero value.
type DeviceRecord struct {
	Device        string       `json:"device"`             // e.g. /dev/sda
	DriveID       string       `json:"drive_id,omitempty"` // udisks drive object id or serial
	Model         string       `json:"model,omitempty"`
	Serial        string       `json:"serial,omitempty"`
	Firmware      string       `json:"firmware,omitempty"`
	Type          string       `json:"type,omitempty"` // HDD, SSD, NVMe, SD/eMMC
	Status        DeviceStatus `json:"status"`
	Error         string       `json:"error,omitempty"`
	Mountpoints   []string     `json:"mountpoints,omitempty"`
	Usage         *Usage       `json:"usage,omitempty"`
	CapacityBytes *uint64      `json:"capacity_bytes,omitempty"`
	SmartPassed   *bool        `json:"smart_passed,omitempty"`
	Smart         SmartSection `json:"smart"`
	Temperature   *float64     `json:"temperature,omitempty"` // Celsius
	PowerOnHours  *int64       `json:"power_on_hours,omitempty"`
}

// Identifier returns the stable identity of the record within a report:
// the device path when known, otherwise the drive id. Unique per report.
func (d *DeviceRecord) Identifier() string {
	if d.Device != "" {
		return d.Device
	}
	return d.DriveID
}

// Unavailable marks the record as not queryable and clears SMART fields,
// keeping the triggering error as a string.
func (d *DeviceRecord) Unavailable(err error) {
	d.Status = StatusUnavailable
	if err != nil {
		d.Error = err.Error()
	}
	d.SmartPassed = nil
	d.Smart = AbsentSection()
	d.Temperature = nil
	d.PowerOnHours = nil
}

// =============================================================================
// Breaches and reports
// =============================================================================

// Severity of a metric breach.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// MetricBreach records one metric crossing its threshold on one device.
// Created by the evaluator and never mutated afterwards.
type MetricBreach struct {
	Device    string   `json:"device"`
	Metric    string   `json:"metric"`
	Observed  any      `json:"observed"`
	Threshold any      `json:"threshold,omitempty"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// Report is the immutable result of one monitoring run.
// Devices preserve capture order; Breaches preserve device order, then
// metric declaration order.
type Report struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Devices     []DeviceRecord `json:"devices"`
	Breaches    []MetricBreach `json:"breaches"`
}

// Criticals returns the subset of breaches with critical severity.
func (r *Report) Criticals() []MetricBreach {
	var out []MetricBreach
	for _, b := range r.Breaches {
		if b.Severity == SeverityCritical {
			out = append(out, b)
		}
	}
	return out
}

// UnavailableCount returns how many devices could not be queried.
func (r *Report) UnavailableCount() int {
	n := 0
	for _, d := range r.Devices {
		if d.Status == StatusUnavailable {
			n++
		}
	}
	return n
}
