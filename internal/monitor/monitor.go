// Package monitor runs the capture-evaluate pipeline and assembles the
// per-run report.
package monitor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
	"github.com/disktools/diskwatch/internal/smart"
)

// Monitor ties a collector to the configured metric selection. One
// Monitor serves many runs; each run produces an independent Report.
type Monitor struct {
	cfg       *config.Settings
	collector *smart.Collector
}

// New creates a Monitor for the given configuration.
func New(cfg *config.Settings) *Monitor {
	return &Monitor{
		cfg:       cfg,
		collector: smart.NewCollector(cfg),
	}
}

// Run performs one monitoring pass: collect every device, evaluate the
// metric selection against each record, and assemble the report. Device
// order in the report is capture order; breach order follows it.
func (m *Monitor) Run(ctx context.Context) *models.Report {
	started := time.Now()
	records := m.collector.Collect(ctx)
	metrics := m.cfg.EffectiveMetrics()

	var breaches []models.MetricBreach
	for i := range records {
		breaches = append(breaches, Evaluate(&records[i], metrics, m.cfg)...)
	}

	report := &models.Report{
		GeneratedAt: started,
		Devices:     records,
		Breaches:    breaches,
	}

	log.Info().
		Int("devices", len(records)).
		Int("unavailable", report.UnavailableCount()).
		Int("breaches", len(breaches)).
		Int("critical", len(report.Criticals())).
		Dur("elapsed", time.Since(started)).
		Msg("Monitoring run complete")

	return report
}
