// Package notify dispatches monitoring findings to the configured
// notification channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/disktools/diskwatch/internal/config"
	"github.com/disktools/diskwatch/internal/models"
)

var (
	// ErrNoChannels indicates no notification channel is configured.
	ErrNoChannels = errors.New("no notification channels configured")
	// ErrAllChannelsFailed indicates every configured channel failed.
	ErrAllChannelsFailed = errors.New("all notification channels failed")
	// ErrMisconfigured indicates a channel has partial configuration.
	ErrMisconfigured = errors.New("channel misconfigured")
)

// Message is one notification, rendered once and fanned out to every
// channel. Channels downgrade the formatting they cannot carry.
type Message struct {
	Title    string
	Body     string
	Critical bool
}

// Notifier sends a message through one channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// builder inspects the settings for one channel: (nil, nil) means the
// channel is not configured, an error means it is configured but unusable.
type builder func(cfg *config.Settings) (Notifier, error)

var builders = []builder{
	newTelegram,
	newNtfy,
	newEmail,
	newSMS,
}

// Dispatcher fans messages out to every usable channel.
type Dispatcher struct {
	channels []Notifier
}

// NewDispatcher builds a Dispatcher from the settings. Misconfigured
// channels are logged and skipped; they never block the others.
func NewDispatcher(cfg *config.Settings) *Dispatcher {
	d := &Dispatcher{}
	for _, build := range builders {
		n, err := build(cfg)
		if err != nil {
			log.Warn().Err(err).Msg("Skipping notification channel")
			continue
		}
		if n == nil {
			continue
		}
		d.channels = append(d.channels, n)
	}
	return d
}

// Channels returns the names of the usable channels.
func (d *Dispatcher) Channels() []string {
	names := make([]string, len(d.channels))
	for i, n := range d.channels {
		names[i] = n.Name()
	}
	return names
}

// Send delivers the message on every channel concurrently. Partial
// delivery is success; the error is ErrAllChannelsFailed only when no
// channel got the message out, and ErrNoChannels when none is configured.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	if len(d.channels) == 0 {
		log.Debug().Msg("No notification channels configured")
		return ErrNoChannels
	}

	var wg sync.WaitGroup
	results := make([]error, len(d.channels))
	for i, ch := range d.channels {
		wg.Add(1)
		go func(i int, ch Notifier) {
			defer wg.Done()
			if err := ch.Send(ctx, msg); err != nil {
				log.Error().Err(err).Str("channel", ch.Name()).Msg("Notification failed")
				results[i] = err
				return
			}
			log.Info().Str("channel", ch.Name()).Msg("Notification sent")
		}(i, ch)
	}
	wg.Wait()

	failed := 0
	for _, err := range results {
		if err != nil {
			failed++
		}
	}
	if failed == len(d.channels) {
		return ErrAllChannelsFailed
	}
	return nil
}

// FromReport summarizes a report into one message. Critical findings
// lead; warnings and unavailable devices follow.
func FromReport(r *models.Report) Message {
	hostname, _ := os.Hostname()
	criticals := r.Criticals()

	title := fmt.Sprintf("Disk monitor: %d finding(s)", len(r.Breaches))
	if len(criticals) > 0 {
		title = fmt.Sprintf("Disk monitor: %d CRITICAL finding(s)", len(criticals))
	}
	if hostname != "" {
		title += " on " + hostname
	}

	var b strings.Builder
	for _, breach := range r.Breaches {
		if breach.Severity == models.SeverityCritical {
			fmt.Fprintf(&b, "[CRITICAL] %s\n", breach.Message)
		}
	}
	for _, breach := range r.Breaches {
		if breach.Severity != models.SeverityCritical {
			fmt.Fprintf(&b, "[warning] %s\n", breach.Message)
		}
	}
	fmt.Fprintf(&b, "\n%d device(s) checked, %d unavailable.",
		len(r.Devices), r.UnavailableCount())

	return Message{
		Title:    title,
		Body:     b.String(),
		Critical: len(criticals) > 0,
	}
}
