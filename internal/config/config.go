// Package config provides application configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Settings holds all application configuration. It is loaded once at
// startup and passed through the pipeline unchanged; components never
// read the environment directly.
type Settings struct {
	// Application metadata
	Version  string `envconfig:"VERSION" default:"0.1.0"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Disk tool paths
	SmartLib string `envconfig:"SMART_LIB" default:"/usr/sbin/smartctl"`
	UdiskLib string `envconfig:"UDISK_LIB" default:"/usr/bin/udisksctl"`

	// Dry run replays recorded tool output instead of invoking binaries
	DryRun         bool   `envconfig:"DRY_RUN" default:"false"`
	SampleDump     string `envconfig:"SAMPLE_DUMP" default:"dump.txt"`
	SampleSmartctl string `envconfig:"SAMPLE_SMARTCTL" default:""`

	// Metric selection and thresholds
	Metrics            MetricList `envconfig:"METRICS"`
	TemperatureDangerC float64    `envconfig:"TEMPERATURE_DANGER_C" default:"70"`
	UsageDangerPct     float64    `envconfig:"USAGE_DANGER_PCT" default:"90"`

	// Timeouts and scheduling
	ToolTimeout  time.Duration `envconfig:"TOOL_TIMEOUT" default:"10s"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"30m"`

	// HTML report output
	DiskReport bool   `envconfig:"DISK_REPORT" default:"true"`
	ReportDir  string `envconfig:"REPORT_DIR" default:"report"`
	ReportFile string `envconfig:"REPORT_FILE" default:"disk_report_%m-%d-%Y_%I:%M_%p.html"`

	// Email/SMS notifications (SMTP)
	GmailUser  string `envconfig:"GMAIL_USER"`
	GmailPass  string `envconfig:"GMAIL_PASS"`
	SMTPHost   string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort   int    `envconfig:"SMTP_PORT" default:"587"`
	Recipient  string `envconfig:"RECIPIENT"`
	Phone      string `envconfig:"PHONE"`
	SMSGateway string `envconfig:"SMS_GATEWAY" default:"tmomail.net"`

	// Ntfy notifications
	NtfyURL      string `envconfig:"NTFY_URL"`
	NtfyTopic    string `envconfig:"NTFY_TOPIC"`
	NtfyUsername string `envconfig:"NTFY_USERNAME"`
	NtfyPassword string `envconfig:"NTFY_PASSWORD"`

	// Telegram notifications
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID"`
	TelegramThreadID int64  `envconfig:"TELEGRAM_THREAD_ID"`

	// HTTP server settings (serve mode)
	APIHost string `envconfig:"API_HOST" default:"0.0.0.0"`
	APIPort int    `envconfig:"API_PORT" default:"9010"`
}

// ListenAddr returns the address string for the HTTP server to bind to.
func (s *Settings) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.APIHost, s.APIPort)
}

// EffectiveMetrics returns the configured metric list, or the default
// selection when METRICS is unset.
func (s *Settings) EffectiveMetrics() []Metric {
	if len(s.Metrics) > 0 {
		return s.Metrics
	}
	return DefaultMetrics()
}

// Load creates a new Settings instance from environment variables.
// Invalid metric entries are returned separately so the caller can log
// them as warnings; they never make the whole load fail.
func Load() (*Settings, []error, error) {
	s := &Settings{}
	if err := envconfig.Process("", s); err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	valid, warnings := validateMetrics(s.Metrics)
	s.Metrics = valid
	return s, warnings, nil
}

// =============================================================================
// Metric configuration
// =============================================================================

// Metric selects one attribute to evaluate and optionally overrides the
// built-in policy thresholds. Threshold fields are pointers so that an
// explicit zero is distinguishable from "not set".
type Metric struct {
	Attribute    string   `json:"attribute"`
	MinThreshold *float64 `json:"min_threshold,omitempty"`
	MaxThreshold *float64 `json:"max_threshold,omitempty"`
	EqualMatch   any      `json:"equal_match,omitempty"`
}

// MetricList decodes the METRICS environment variable: either a JSON
// array of metric objects or a single object.
type MetricList []Metric

// Decode implements envconfig.Decoder.
func (m *MetricList) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		*m = nil
		return nil
	}
	if strings.HasPrefix(value, "{") {
		var single Metric
		if err := json.Unmarshal([]byte(value), &single); err != nil {
			return fmt.Errorf("invalid METRICS value: %w", err)
		}
		*m = MetricList{single}
		return nil
	}
	var list []Metric
	if err := json.Unmarshal([]byte(value), &list); err != nil {
		return fmt.Errorf("invalid METRICS value: %w", err)
	}
	*m = list
	return nil
}

// Metric names the evaluator handles directly on the device record,
// outside the SMART attribute table.
const (
	MetricSmartPassed    = "smart_status.passed"
	MetricTemperature    = "temperature"
	MetricUsagePercent   = "usage_percent"
	MetricPercentageUsed = "percentage_used"
	MetricPowerOnHours   = "power_on_hours"
	MetricAvailability   = "availability"
)

// knownAttributes lists every metric name that may appear in METRICS:
// the built-in record metrics plus the udisksctl Drive.Ata attribute set.
var knownAttributes = map[string]struct{}{
	MetricSmartPassed:    {},
	MetricTemperature:    {},
	MetricUsagePercent:   {},
	MetricPercentageUsed: {},
	MetricPowerOnHours:   {},

	"SmartEnabled":                      {},
	"SmartFailing":                      {},
	"SmartNumAttributesFailedInThePast": {},
	"SmartNumAttributesFailing":         {},
	"SmartNumBadSectors":                {},
	"SmartPowerOnSeconds":               {},
	"SmartSelftestPercentRemaining":     {},
	"SmartSelftestStatus":               {},
	"SmartSupported":                    {},
	"SmartTemperature":                  {},
	"SmartUpdated":                      {},

	"Raw_Read_Error_Rate":     {},
	"Spin_Up_Time":            {},
	"Start_Stop_Count":        {},
	"Reallocated_Sector_Ct":   {},
	"Seek_Error_Rate":         {},
	"Power_On_Hours":          {},
	"Spin_Retry_Count":        {},
	"Power_Cycle_Count":       {},
	"Wear_Leveling_Count":     {},
	"Used_Rsvd_Blk_Cnt_Tot":   {},
	"Program_Fail_Cnt_Total":  {},
	"Erase_Fail_Count_Total":  {},
	"Runtime_Bad_Block":       {},
	"Reported_Uncorrect":      {},
	"Airflow_Temperature_Cel": {},
	"Temperature_Celsius":     {},
	"Hardware_ECC_Recovered":  {},
	"Reallocated_Event_Count": {},
	"Current_Pending_Sector":  {},
	"Offline_Uncorrectable":   {},
	"UDMA_CRC_Error_Count":    {},
	"Total_LBAs_Written":      {},
	"Total_LBAs_Read":         {},

	"critical_warning":  {},
	"available_spare":   {},
	"media_errors":      {},
	"unsafe_shutdowns":  {},
	"power_cycle_count": {},
}

// KnownAttribute reports whether name is a valid metric selection.
func KnownAttribute(name string) bool {
	_, ok := knownAttributes[name]
	return ok
}

// DefaultMetrics is the metric selection used when METRICS is unset.
func DefaultMetrics() []Metric {
	return []Metric{
		{Attribute: MetricSmartPassed},
		{Attribute: MetricTemperature},
		{Attribute: MetricUsagePercent},
	}
}

// validateMetrics drops invalid entries and reports them as warnings.
// A metric with no condition at all falls back to the built-in policy for
// that attribute, so only unknown attributes are rejected here.
func validateMetrics(metrics MetricList) (MetricList, []error) {
	var valid MetricList
	var warnings []error
	for _, m := range metrics {
		if m.Attribute == "" {
			warnings = append(warnings, fmt.Errorf("metric with empty attribute ignored"))
			continue
		}
		if !KnownAttribute(m.Attribute) {
			warnings = append(warnings, fmt.Errorf("unknown metric attribute %q ignored", m.Attribute))
			continue
		}
		valid = append(valid, m)
	}
	return valid, warnings
}
