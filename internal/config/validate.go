package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks values that can be verified without touching the network.
// Credentials are checked separately by MissingCredentials so that `check`
// can report both kinds of problem.
func (c *Config) Validate() error {
	var errs []error

	durations := []struct{ path, raw string }{
		{"telegram.poll_timeout", c.Telegram.PollTimeout},
		{"practicum.timeout", c.Practicum.Timeout},
		{"notifier.send_timeout", c.Notifier.SendTimeout},
		{"notifier.retry_base", c.Notifier.RetryBase},
		{"notifier.retry_max_delay", c.Notifier.RetryMaxDelay},
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	if ep := strings.TrimSpace(c.Practicum.Endpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("practicum.endpoint: invalid url %q", ep))
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Poll.NotifyPolicy)) {
	case "", "collection", "item":
	default:
		errs = append(errs, fmt.Errorf("poll.notify_policy: %q (want collection or item)", c.Poll.NotifyPolicy))
	}
	if tz := strings.TrimSpace(c.Poll.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("poll.timezone: %w", err))
		}
	}

	if c.Notifier.RatePerSec < 0 {
		errs = append(errs, errors.New("notifier.rate_per_sec: must be >= 0"))
	}
	if c.Notifier.RetryMax < 0 {
		errs = append(errs, errors.New("notifier.retry_max: must be >= 0"))
	}
	if c.Notifier.HistorySize < 0 {
		errs = append(errs, errors.New("notifier.history_size: must be >= 0"))
	}
	if c.Telegram.ThreadID < 0 {
		errs = append(errs, errors.New("telegram.thread_id: must be >= 0"))
	}
	return errors.Join(errs...)
}

// Location returns the timezone for cron intervals.
func (p PollConfig) Location() *time.Location {
	tz := strings.TrimSpace(p.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}
