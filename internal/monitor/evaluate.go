package monitor

import (
	"fmt"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
)

// Evaluate checks one device record against the metric selection and
// returns a breach for every threshold crossed, in metric declaration
// order. It reads the record and never mutates it.
func Evaluate(rec *models.DeviceRecord, metrics []config.Metric, cfg *config.Settings) []models.MetricBreach {
	// A device that could not be queried gets exactly one breach; its
	// missing metrics are a symptom, not separate findings.
	if rec.Status == models.StatusUnavailable {
		return []models.MetricBreach{{
			Device:   rec.Identifier(),
			Metric:   config.MetricAvailability,
			Observed: rec.Error,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("%s could not be queried: %s", rec.Identifier(), rec.Error),
		}}
	}

	var breaches []models.MetricBreach
	for _, m := range metrics {
		observed, ok := observe(rec, m.Attribute)
		if !ok {
			// Not reported by this device. Skipped, not breached.
			continue
		}
		if b := check(rec, m, observed, cfg); b != nil {
			breaches = append(breaches, *b)
		}
	}
	return breaches
}

// observe resolves a metric name to its value on the record. The built-in
// names read normalized record fields; anything else is looked up in the
// SMART attribute table.
func observe(rec *models.DeviceRecord, attribute string) (any, bool) {
	switch attribute {
	case config.MetricSmartPassed:
		if rec.SmartPassed == nil {
			return nil, false
		}
		return *rec.SmartPassed, true
	case config.MetricTemperature:
		if rec.Temperature == nil {
			return nil, false
		}
		return *rec.Temperature, true
	case config.MetricUsagePercent:
		if rec.Usage == nil {
			return nil, false
		}
		return rec.Usage.Percent, true
	case config.MetricPowerOnHours:
		if rec.PowerOnHours == nil {
			return nil, false
		}
		return *rec.PowerOnHours, true
	default:
		v := rec.Smart.Attribute(attribute)
		return v, v != nil
	}
}

// check applies either the metric's explicit thresholds or the built-in
// policy for the attribute. Returns nil when the value is healthy.
func check(rec *models.DeviceRecord, m config.Metric, observed any, cfg *config.Settings) *models.MetricBreach {
	if m.MinThreshold != nil || m.MaxThreshold != nil || m.EqualMatch != nil {
		return checkOverride(rec, m, observed)
	}

	switch m.Attribute {
	case config.MetricSmartPassed:
		if passed, ok := observed.(bool); ok && !passed {
			return breach(rec, m.Attribute, observed, true, models.SeverityCritical,
				fmt.Sprintf("%s reports SMART overall-health self-assessment FAILED", rec.Identifier()))
		}
	case config.MetricTemperature:
		if v, ok := toFloat(observed); ok && v > cfg.TemperatureDangerC {
			return breach(rec, m.Attribute, observed, cfg.TemperatureDangerC, models.SeverityWarning,
				fmt.Sprintf("%s temperature %.0f°C exceeds %.0f°C", rec.Identifier(), v, cfg.TemperatureDangerC))
		}
	case config.MetricUsagePercent, config.MetricPercentageUsed:
		if v, ok := toFloat(observed); ok && v > cfg.UsageDangerPct {
			return breach(rec, m.Attribute, observed, cfg.UsageDangerPct, models.SeverityWarning,
				fmt.Sprintf("%s %s at %.1f%% exceeds %.1f%%", rec.Identifier(), m.Attribute, v, cfg.UsageDangerPct))
		}
	}
	// No built-in condition for this attribute and no override: nothing to
	// compare against, so the metric only reports through overrides.
	return nil
}

// checkOverride evaluates user-supplied thresholds: a value below min,
// above max, or different from the expected equal_match breaches.
func checkOverride(rec *models.DeviceRecord, m config.Metric, observed any) *models.MetricBreach {
	if m.EqualMatch != nil {
		if !looseEqual(observed, m.EqualMatch) {
			return breach(rec, m.Attribute, observed, m.EqualMatch, severityFor(m.Attribute),
				fmt.Sprintf("%s %s is %v, expected %v", rec.Identifier(), m.Attribute, observed, m.EqualMatch))
		}
		return nil
	}

	v, ok := toFloat(observed)
	if !ok {
		return nil
	}
	if m.MinThreshold != nil && v < *m.MinThreshold {
		return breach(rec, m.Attribute, observed, *m.MinThreshold, severityFor(m.Attribute),
			fmt.Sprintf("%s %s at %v is below %v", rec.Identifier(), m.Attribute, observed, *m.MinThreshold))
	}
	if m.MaxThreshold != nil && v > *m.MaxThreshold {
		return breach(rec, m.Attribute, observed, *m.MaxThreshold, severityFor(m.Attribute),
			fmt.Sprintf("%s %s at %v exceeds %v", rec.Identifier(), m.Attribute, observed, *m.MaxThreshold))
	}
	return nil
}

func breach(rec *models.DeviceRecord, metric string, observed, threshold any, sev models.Severity, msg string) *models.MetricBreach {
	return &models.MetricBreach{
		Device:    rec.Identifier(),
		Metric:    metric,
		Observed:  observed,
		Threshold: threshold,
		Severity:  sev,
		Message:   msg,
	}
}

// severityFor maps a metric name to the severity of its breaches. Only a
// failed overall self-assessment is critical; everything else warns.
func severityFor(attribute string) models.Severity {
	if attribute == config.MetricSmartPassed {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}

// toFloat widens the numeric types that appear in attribute tables.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// looseEqual compares across the numeric types JSON decoding and value
// coercion produce, so `"equal_match": 0` matches an int64 zero.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return aok && bok && af == bf
}
