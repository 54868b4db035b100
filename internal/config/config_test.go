package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	os.Unsetenv("METRICS")
	os.Unsetenv("SMART_LIB")
	os.Unsetenv("TOOL_TIMEOUT")

	cfg, warnings, err := Load()
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, "/usr/sbin/smartctl", cfg.SmartLib)
	assert.Equal(t, "/usr/bin/udisksctl", cfg.UdiskLib)
	assert.Equal(t, "report", cfg.ReportDir)
	assert.Equal(t, float64(70), cfg.TemperatureDangerC)
	assert.Equal(t, "10s", cfg.ToolTimeout.String())
	assert.True(t, cfg.DiskReport)
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("SMART_LIB", "/opt/bin/smartctl")
	os.Setenv("TOOL_TIMEOUT", "3s")
	os.Setenv("TELEGRAM_CHAT_ID", "12345")
	defer os.Unsetenv("SMART_LIB")
	defer os.Unsetenv("TOOL_TIMEOUT")
	defer os.Unsetenv("TELEGRAM_CHAT_ID")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/opt/bin/smartctl", cfg.SmartLib)
	assert.Equal(t, "3s", cfg.ToolTimeout.String())
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
}

func TestMetricListDecode(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{"empty", "", 0, false},
		{"single object", `{"attribute": "temperature", "max_threshold": 70}`, 1, false},
		{"array", `[{"attribute": "temperature"}, {"attribute": "SmartNumBadSectors", "max_threshold": 0}]`, 2, false},
		{"garbage", `not json`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m MetricList
			err := m.Decode(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, m, tt.want)
		})
	}
}

func TestMetricListDecodeThresholds(t *testing.T) {
	var m MetricList
	err := m.Decode(`[{"attribute": "temperature", "max_threshold": 70.5, "min_threshold": 0}]`)
	require.NoError(t, err)
	require.Len(t, m, 1)

	require.NotNil(t, m[0].MaxThreshold)
	assert.Equal(t, 70.5, *m[0].MaxThreshold)
	// Explicit zero must survive as a set threshold, not be dropped.
	require.NotNil(t, m[0].MinThreshold)
	assert.Equal(t, float64(0), *m[0].MinThreshold)
}

func TestValidateMetricsDropsUnknown(t *testing.T) {
	in := MetricList{
		{Attribute: "temperature"},
		{Attribute: "NotARealAttribute"},
		{Attribute: ""},
		{Attribute: "SmartFailing"},
	}

	valid, warnings := validateMetrics(in)

	require.Len(t, valid, 2)
	assert.Equal(t, "temperature", valid[0].Attribute)
	assert.Equal(t, "SmartFailing", valid[1].Attribute)
	assert.Len(t, warnings, 2)
}

func TestLoadInvalidMetricIsWarningNotError(t *testing.T) {
	os.Setenv("METRICS", `[{"attribute": "bogus_metric"}]`)
	defer os.Unsetenv("METRICS")

	cfg, warnings, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.Metrics)
	assert.Len(t, warnings, 1)
}

func TestEffectiveMetricsFallsBackToDefaults(t *testing.T) {
	cfg := &Settings{}
	metrics := cfg.EffectiveMetrics()
	require.NotEmpty(t, metrics)
	assert.Equal(t, MetricSmartPassed, metrics[0].Attribute)

	cfg.Metrics = MetricList{{Attribute: "SmartNumBadSectors"}}
	metrics = cfg.EffectiveMetrics()
	require.Len(t, metrics, 1)
	assert.Equal(t, "SmartNumBadSectors", metrics[0].Attribute)
}
