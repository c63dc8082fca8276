package app

import (
	"fmt"
	"time"

	"hwbot/internal/config"
	"hwbot/internal/notifier"
	"hwbot/internal/poll"
	"hwbot/internal/practicum"
	telegram "hwbot/internal/transport/telegram/adapter"
	logx "hwbot/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapTelegramConfig(cfg *config.Config) (telegram.Config, error) {
	timeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{Token: cfg.Telegram.Token, PollTimeout: timeout}, nil
}

func mapPracticumConfig(cfg *config.Config) (practicum.Config, error) {
	timeout, err := config.ParseDurationOrDefault("practicum.timeout", cfg.Practicum.Timeout, 30*time.Second)
	if err != nil {
		return practicum.Config{}, err
	}
	return practicum.Config{
		Endpoint: cfg.Practicum.Endpoint,
		Token:    cfg.Practicum.Token,
		Timeout:  timeout,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	n := cfg.Notifier
	sendTimeout, err := config.ParseDurationOrDefault("notifier.send_timeout", n.SendTimeout, 10*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	base, err := config.ParseDurationOrDefault("notifier.retry_base", n.RetryBase, time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	maxDelay, err := config.ParseDurationOrDefault("notifier.retry_max_delay", n.RetryMaxDelay, 30*time.Second)
	if err != nil {
		return notifier.Config{}, err
	}
	if base > maxDelay {
		return notifier.Config{}, fmt.Errorf("notifier.retry_base (%s) must not exceed notifier.retry_max_delay (%s)", base, maxDelay)
	}
	return notifier.Config{
		ChatID:        cfg.Telegram.ChatID,
		ThreadID:      cfg.Telegram.ThreadID,
		RatePerSec:    n.RatePerSec,
		SendTimeout:   sendTimeout,
		RetryMax:      n.RetryMax,
		RetryBase:     base,
		RetryMaxDelay: maxDelay,
		HistorySize:   n.HistorySize,
	}, nil
}

func mapPollConfig(cfg *config.Config) (poll.Schedule, poll.Policy, error) {
	sched, err := poll.ParseSchedule(cfg.Poll.Interval, cfg.Poll.Location())
	if err != nil {
		return poll.Schedule{}, "", fmt.Errorf("poll.interval: %w", err)
	}
	policy, err := poll.ParsePolicy(cfg.Poll.NotifyPolicy)
	if err != nil {
		return poll.Schedule{}, "", fmt.Errorf("poll.notify_policy: %w", err)
	}
	return sched, policy, nil
}

// Check validates everything New would reject, without connecting anywhere.
// Missing credentials are reported by config.MissingCredentials instead.
func Check(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if _, err := mapTelegramConfig(cfg); err != nil {
		return err
	}
	if _, err := mapPracticumConfig(cfg); err != nil {
		return err
	}
	if _, err := mapNotifierConfig(cfg); err != nil {
		return err
	}
	_, _, err := mapPollConfig(cfg)
	return err
}
