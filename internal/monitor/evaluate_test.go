package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
)

func ptrF(v float64) *float64 { return &v }
func ptrB(v bool) *bool       { return &v }
func ptrI(v int64) *int64     { return &v }

func testSettings() *config.Settings {
	return &config.Settings{TemperatureDangerC: 70, UsageDangerPct: 90}
}

func healthyRecord() *models.DeviceRecord {
	return &models.DeviceRecord{
		Device:      "/dev/sda",
		Status:      models.StatusOK,
		SmartPassed: ptrB(true),
		Temperature: ptrF(32),
		Usage:       &models.Usage{Percent: 41.5},
		Smart: models.PresentSection(map[string]any{
			"Reallocated_Sector_Ct":  int64(0),
			"Current_Pending_Sector": int64(0),
		}),
	}
}

func TestEvaluateHealthyDevice(t *testing.T) {
	breaches := Evaluate(healthyRecord(), config.DefaultMetrics(), testSettings())
	assert.Empty(t, breaches)
}

func TestEvaluateSmartFailedIsCritical(t *testing.T) {
	rec := healthyRecord()
	rec.SmartPassed = ptrB(false)

	breaches := Evaluate(rec, config.DefaultMetrics(), testSettings())
	require.Len(t, breaches, 1)

	b := breaches[0]
	assert.Equal(t, "/dev/sda", b.Device)
	assert.Equal(t, "smart_status.passed", b.Metric)
	assert.Equal(t, false, b.Observed)
	assert.Equal(t, models.SeverityCritical, b.Severity)
}

func TestEvaluateTemperatureOverDanger(t *testing.T) {
	rec := healthyRecord()
	rec.Temperature = ptrF(75)

	breaches := Evaluate(rec, config.DefaultMetrics(), testSettings())
	require.Len(t, breaches, 1)

	b := breaches[0]
	assert.Equal(t, config.MetricTemperature, b.Metric)
	assert.Equal(t, float64(75), b.Observed)
	assert.Equal(t, float64(70), b.Threshold)
	assert.Equal(t, models.SeverityWarning, b.Severity)
}

func TestEvaluateTemperatureAtDangerIsHealthy(t *testing.T) {
	rec := healthyRecord()
	rec.Temperature = ptrF(70)

	assert.Empty(t, Evaluate(rec, config.DefaultMetrics(), testSettings()))
}

func TestEvaluateUsageOverDanger(t *testing.T) {
	rec := healthyRecord()
	rec.Usage = &models.Usage{Percent: 95.2}

	breaches := Evaluate(rec, config.DefaultMetrics(), testSettings())
	require.Len(t, breaches, 1)
	assert.Equal(t, config.MetricUsagePercent, breaches[0].Metric)
	assert.Equal(t, models.SeverityWarning, breaches[0].Severity)
}

func TestEvaluateMissingMetricsSkipped(t *testing.T) {
	rec := &models.DeviceRecord{
		Device: "/dev/sdb",
		Status: models.StatusOK,
		Smart:  models.AbsentSection(),
	}

	// Nothing reported, nothing breached.
	assert.Empty(t, Evaluate(rec, config.DefaultMetrics(), testSettings()))
}

func TestEvaluateUnavailableDevice(t *testing.T) {
	rec := healthyRecord()
	rec.Unavailable(assert.AnError)

	breaches := Evaluate(rec, config.DefaultMetrics(), testSettings())
	require.Len(t, breaches, 1)

	b := breaches[0]
	assert.Equal(t, "availability", b.Metric)
	assert.Equal(t, models.SeverityWarning, b.Severity)
	assert.Contains(t, b.Message, "/dev/sda")
}

func TestEvaluateMaxThresholdOverride(t *testing.T) {
	rec := healthyRecord()
	metrics := []config.Metric{
		{Attribute: "Reallocated_Sector_Ct", MaxThreshold: ptrF(0)},
	}

	assert.Empty(t, Evaluate(rec, metrics, testSettings()))

	rec.Smart.Attributes["Reallocated_Sector_Ct"] = int64(12)
	breaches := Evaluate(rec, metrics, testSettings())
	require.Len(t, breaches, 1)
	assert.Equal(t, "Reallocated_Sector_Ct", breaches[0].Metric)
	assert.Equal(t, int64(12), breaches[0].Observed)
	assert.Equal(t, float64(0), breaches[0].Threshold)
	assert.Equal(t, models.SeverityWarning, breaches[0].Severity)
}

func TestEvaluateMinThresholdOverride(t *testing.T) {
	rec := healthyRecord()
	rec.Smart.Attributes["available_spare"] = int64(8)
	metrics := []config.Metric{
		{Attribute: "available_spare", MinThreshold: ptrF(10)},
	}

	breaches := Evaluate(rec, metrics, testSettings())
	require.Len(t, breaches, 1)
	assert.Equal(t, "available_spare", breaches[0].Metric)
}

func TestEvaluateEqualMatchOverride(t *testing.T) {
	rec := healthyRecord()
	rec.Smart.Attributes["SmartSelftestStatus"] = "success"
	metrics := []config.Metric{
		{Attribute: "SmartSelftestStatus", EqualMatch: "success"},
	}

	assert.Empty(t, Evaluate(rec, metrics, testSettings()))

	rec.Smart.Attributes["SmartSelftestStatus"] = "error_unknown"
	breaches := Evaluate(rec, metrics, testSettings())
	require.Len(t, breaches, 1)
	assert.Equal(t, models.SeverityWarning, breaches[0].Severity)
}

func TestEvaluateEqualMatchAcrossNumericTypes(t *testing.T) {
	rec := healthyRecord()
	rec.Smart.Attributes["critical_warning"] = int64(0)

	// JSON metric config decodes numbers as float64.
	metrics := []config.Metric{
		{Attribute: "critical_warning", EqualMatch: float64(0)},
	}
	assert.Empty(t, Evaluate(rec, metrics, testSettings()))
}

func TestEvaluateTemperatureOverrideBeatsBuiltin(t *testing.T) {
	rec := healthyRecord()
	rec.Temperature = ptrF(55)
	metrics := []config.Metric{
		{Attribute: config.MetricTemperature, MaxThreshold: ptrF(50)},
	}

	breaches := Evaluate(rec, metrics, testSettings())
	require.Len(t, breaches, 1)
	assert.Equal(t, float64(50), breaches[0].Threshold)
}

func TestEvaluateBreachOrderFollowsMetricOrder(t *testing.T) {
	rec := healthyRecord()
	rec.SmartPassed = ptrB(false)
	rec.Temperature = ptrF(80)
	rec.Usage = &models.Usage{Percent: 99}

	breaches := Evaluate(rec, config.DefaultMetrics(), testSettings())
	require.Len(t, breaches, 3)
	assert.Equal(t, config.MetricSmartPassed, breaches[0].Metric)
	assert.Equal(t, config.MetricTemperature, breaches[1].Metric)
	assert.Equal(t, config.MetricUsagePercent, breaches[2].Metric)
}

func TestEvaluatePowerOnHours(t *testing.T) {
	rec := healthyRecord()
	rec.PowerOnHours = ptrI(48000)
	metrics := []config.Metric{
		{Attribute: config.MetricPowerOnHours, MaxThreshold: ptrF(43800)},
	}

	breaches := Evaluate(rec, metrics, testSettings())
	require.Len(t, breaches, 1)
	assert.Equal(t, int64(48000), breaches[0].Observed)
}
