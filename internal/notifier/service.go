package notifier

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"hwbot/internal/eventbus"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

var ErrNoTarget = errors.New("notifier: chat id is not configured")

// Service sends text to a fixed chat through a kit.Sender.
// It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender kit.Sender
	log    logx.Logger
	bus    eventbus.Bus

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, sender kit.Sender, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.RetryMaxDelay <= 0 {
		cfg.RetryMaxDelay = 10 * time.Second
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	s.cfg = cfg
	// Telegram allows roughly one message per second into a single chat.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

// Deliver sends text to the configured chat. The error is informational:
// it has already been logged.
func (s *Service) Deliver(ctx context.Context, text string) error {
	s.mu.Lock()
	cfg := s.cfg
	lim := s.limiter
	s.mu.Unlock()

	if cfg.ChatID == 0 {
		s.log.Error("message not sent", logx.Err(ErrNoTarget))
		return ErrNoTarget
	}
	to := kit.ChatTarget{ChatID: cfg.ChatID, ThreadID: cfg.ThreadID}

	attempts := 0
	var lastErr error
	for attempt := 1; attempt <= 1+cfg.RetryMax; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		attempts = attempt

		callCtx, cancel := context.WithTimeout(ctx, cfg.SendTimeout)
		_, err := s.sender.SendText(callCtx, to, text, &kit.SendOptions{DisablePreview: true})
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err
		s.log.Debug("send attempt failed", logx.Err(err), logx.Int("attempt", attempt), logx.Int("max", 1+cfg.RetryMax))

		if attempt > cfg.RetryMax {
			break
		}
		t := time.NewTimer(retryDelay(cfg, attempt))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			lastErr = ctx.Err()
		}
		if ctx.Err() != nil {
			break
		}
	}

	s.record(text, lastErr)
	ev := DeliveryEvent{ChatID: to.ChatID, Attempts: attempts, At: time.Now()}
	if lastErr != nil {
		ev.Error = lastErr.Error()
		s.log.Error("message not sent", logx.Err(lastErr), logx.Int("attempts", attempts))
		s.publish(eventbus.TypeNotifyFailed, ev)
		return lastErr
	}
	s.log.Info("message sent", logx.Int64("chat_id", to.ChatID))
	s.publish(eventbus.TypeNotifySent, ev)
	return nil
}

func (s *Service) publish(typ string, ev DeliveryEvent) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Time: ev.At, Data: ev})
	}
}

// History returns recent deliveries, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) record(text string, err error) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	it := HistoryItem{At: time.Now(), Text: text}
	if err != nil {
		it.Err = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}

// retryDelay is the wait before attempt+1: base * 2^(attempt-1), jittered 0.7..1.3, capped.
func retryDelay(cfg Config, attempt int) time.Duration {
	d := cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= cfg.RetryMaxDelay {
			d = cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > cfg.RetryMaxDelay {
		d = cfg.RetryMaxDelay
	}
	return d
}
