// Package report renders a monitoring report to HTML and writes it to
// disk under an advisory lock.
package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
)

//go:embed template.html
var templateFS embed.FS

var funcMap = template.FuncMap{
	"ibytes": func(b uint64) string { return humanize.IBytes(b) },
	"capacity": func(p *uint64) string {
		if p == nil {
			return "unknown"
		}
		return humanize.IBytes(*p)
	},
	"percent": func(v float64) string { return fmt.Sprintf("%.1f%%", v) },
	"deref": func(p *bool) bool {
		return p != nil && *p
	},
	"reltime": humanize.Time,
	"join":    strings.Join,
}

var reportTemplate = template.Must(
	template.New("template.html").Funcs(funcMap).ParseFS(templateFS, "template.html"),
)

// reportView is the data handed to the template.
type reportView struct {
	Report    *models.Report
	Version   string
	Hostname  string
	Criticals []models.MetricBreach
}

// Render produces the HTML document for one report.
func Render(r *models.Report, version string) ([]byte, error) {
	hostname, _ := os.Hostname()
	view := reportView{
		Report:    r,
		Version:   version,
		Hostname:  hostname,
		Criticals: r.Criticals(),
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

// strftimeMap translates the strftime tokens accepted in REPORT_FILE to
// Go reference-time layout fragments.
var strftimeMap = []struct {
	token  string
	layout string
}{
	{"%%", "\x00"},
	{"%Y", "2006"},
	{"%y", "06"},
	{"%m", "01"},
	{"%d", "02"},
	{"%H", "15"},
	{"%I", "03"},
	{"%M", "04"},
	{"%S", "05"},
	{"%p", "PM"},
	{"%b", "Jan"},
	{"%B", "January"},
	{"%a", "Mon"},
	{"%A", "Monday"},
}

// Filename expands the strftime-style REPORT_FILE pattern against the
// report timestamp. Unknown tokens are left as-is.
func Filename(pattern string, t time.Time) string {
	layout := pattern
	for _, m := range strftimeMap {
		layout = strings.ReplaceAll(layout, m.token, m.layout)
	}
	name := t.Format(layout)
	return strings.ReplaceAll(name, "\x00", "%")
}

// Write renders the report and writes it into the configured report
// directory, holding a file lock so concurrent runs sharing the
// directory never interleave writes. Returns the written path.
func Write(r *models.Report, cfg *config.Settings) (string, error) {
	html, err := Render(r, cfg.Version)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.ReportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(cfg.ReportDir, Filename(cfg.ReportFile, r.GeneratedAt))

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("failed to lock report file: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Failed to release report lock")
		}
		_ = os.Remove(path + ".lock")
	}()

	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	log.Info().Str("path", path).Int("bytes", len(html)).Msg("Report written")
	return path, nil
}
