package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/config"
	"hwbot/internal/eventbus"
	"hwbot/internal/notifier"
	"hwbot/internal/poll"
	"hwbot/internal/runtime/supervisor"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

type fakeAdapter struct {
	mu      sync.Mutex
	out     chan<- kit.Message
	sent    []string
	to      []kit.ChatTarget
	stopped bool
}

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.to = append(f.to, to)
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: len(f.sent)}, nil
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Message) error {
	f.mu.Lock()
	f.out = out
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func (f *fakeAdapter) inbound(m kit.Message) {
	f.mu.Lock()
	out := f.out
	f.mu.Unlock()
	out <- m
}

type staticFetcher struct{ body any }

func (s staticFetcher) Fetch(ctx context.Context, from time.Time) (any, error) { return s.body, nil }

func testManager(t *testing.T) *config.Manager {
	t.Helper()
	t.Setenv(config.EnvPracticumToken, "pt")
	t.Setenv(config.EnvTelegramToken, "tg")
	t.Setenv(config.EnvTelegramChatID, "42")
	p := filepath.Join(t.TempDir(), "hwbot.yaml")
	require.NoError(t, os.WriteFile(p, []byte("logging:\n  level: error\n  console: true\npoll:\n  interval: 1h\n"), 0o600))
	m := config.NewManager(p)
	_, err := m.Load()
	require.NoError(t, err)
	return m
}

func quietLogs() *logx.Service {
	s, _ := logx.New(logx.Config{Level: "error", Console: true})
	return s
}

func TestAppNotifiesAndAnswersStatus(t *testing.T) {
	fa := &fakeAdapter{}
	body := map[string]any{"homeworks": []any{
		map[string]any{"homework_name": "hw1", "status": "approved"},
	}}
	a, err := New(testManager(t), WithAdapter(fa), WithFetcher(staticFetcher{body: body}), WithLogService(quietLogs()))
	require.NoError(t, err)

	require.NoError(t, a.Start(context.Background()))

	want := `Changed review status for "hw1". Работа проверена: ревьюеру всё понравилось. Ура!`
	require.Eventually(t, func() bool {
		s := fa.texts()
		return len(s) == 1 && s[0] == want
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return strings.Contains(a.status.render(time.Now(), a.sup.Counters(), nil), "Cycles: 1 ")
	}, 2*time.Second, 10*time.Millisecond)

	fa.inbound(kit.Message{ChatID: 42, ThreadID: 7, Text: "/status@hwbot"})
	require.Eventually(t, func() bool { return len(fa.texts()) == 2 }, 2*time.Second, 10*time.Millisecond)

	reply := fa.texts()[1]
	assert.Contains(t, reply, "Last cycle:")
	assert.Contains(t, reply, "notified")
	assert.Contains(t, reply, "1 tracked")
	assert.Contains(t, reply, "Tasks: ")
	assert.NotContains(t, reply, "Tasks: 0 running")
	assert.Contains(t, reply, "[ok] "+want)
	fa.mu.Lock()
	assert.Equal(t, kit.ChatTarget{ChatID: 42, ThreadID: 7}, fa.to[1])
	fa.mu.Unlock()

	require.NoError(t, a.Stop(context.Background(), StopAppStop))
	fa.mu.Lock()
	assert.True(t, fa.stopped)
	fa.mu.Unlock()
	select {
	case <-a.Done():
	default:
		t.Fatal("Done should be closed after Stop")
	}
}

func TestNewRejectsMissingCredentials(t *testing.T) {
	t.Setenv(config.EnvPracticumToken, "")
	t.Setenv(config.EnvTelegramToken, "")
	t.Setenv(config.EnvTelegramChatID, "")
	m := config.NewManager("")
	_, err := m.Load()
	require.NoError(t, err)

	_, err = New(m, WithAdapter(&fakeAdapter{}), WithLogService(quietLogs()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvPracticumToken)
}

func TestHandleMessageIgnoresForeignChat(t *testing.T) {
	fa := &fakeAdapter{}
	a, err := New(testManager(t), WithAdapter(fa), WithFetcher(staticFetcher{}), WithLogService(quietLogs()))
	require.NoError(t, err)

	a.handleMessage(context.Background(), kit.Message{ChatID: 7, Text: "/status"})
	a.handleMessage(context.Background(), kit.Message{ChatID: 42, Text: "status"})
	a.handleMessage(context.Background(), kit.Message{ChatID: 42, Text: "/unknown"})
	assert.Empty(t, fa.texts())

	a.handleMessage(context.Background(), kit.Message{ChatID: 42, Text: "/help"})
	assert.Equal(t, []string{helpText}, fa.texts())
}

func TestCommandName(t *testing.T) {
	tests := map[string]string{
		"/status":            "status",
		"  /Status extra":    "status",
		"/status@hwbot args": "status",
		"status":             "",
		"":                   "",
	}
	for in, want := range tests {
		if got := commandName(in); got != want {
			t.Fatalf("commandName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStatusBoardCounts(t *testing.T) {
	b := newStatusBoard(time.Unix(0, 0), poll.Every(time.Minute), poll.PolicyItem)
	b.observe(eventbus.Event{Type: eventbus.TypeCycle, Data: poll.CycleEvent{Kind: "notified", Items: 2, Tracked: 2}})
	b.observe(eventbus.Event{Type: eventbus.TypeCycle, Data: poll.CycleEvent{Kind: "transport_failure", Error: "endpoint unavailable: http status 500", Alerted: true}})
	b.observe(eventbus.Event{Type: eventbus.TypeNotifySent})
	b.observe(eventbus.Event{Type: eventbus.TypeNotifyFailed})

	out := b.render(time.Unix(90, 0), supervisor.Counters{Active: 4, Started: 5}, []notifier.HistoryItem{{At: time.Unix(10, 0), Text: "x", Err: "boom"}})
	assert.Contains(t, out, "Tasks: 4 running, 5 started")
	assert.Contains(t, out, "Uptime: 1m30s")
	assert.Contains(t, out, "policy item")
	assert.Contains(t, out, "Cycles: 2 (failed 1, alerts 1)")
	assert.Contains(t, out, "Messages: 1 sent, 1 failed")
	assert.Contains(t, out, "Error: endpoint unavailable: http status 500")
	assert.Contains(t, out, "[failed] x")
}

func TestChangedSections(t *testing.T) {
	a := config.Default()
	b := config.Default()
	assert.Empty(t, changedSections(a, b))

	b.Logging.Level = "debug"
	b.Poll.Interval = "5m"
	assert.Equal(t, []string{"poll", "logging"}, changedSections(a, b))

	c := config.Default()
	c.Telegram.ChatID = 9
	assert.False(t, telegramNeedsRestart(a.Telegram, c.Telegram))
	c.Telegram.Token = "other"
	assert.True(t, telegramNeedsRestart(a.Telegram, c.Telegram))
}

func TestCheck(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, Check(cfg))

	cfg.Poll.Interval = "whenever"
	assert.Error(t, Check(cfg))

	cfg = config.Default()
	cfg.Notifier.RetryBase = "1m"
	cfg.Notifier.RetryMaxDelay = "1s"
	assert.Error(t, Check(cfg))
}

func TestApplyConfigUpdatesLogLevel(t *testing.T) {
	logs := quietLogs()
	a, err := New(testManager(t), WithAdapter(&fakeAdapter{}), WithFetcher(staticFetcher{}), WithLogService(logs))
	require.NoError(t, err)

	prev := a.cfgm.Get()
	next := *prev
	next.Logging.Level = "debug"
	a.applyConfig(prev, &next)

	assert.Equal(t, "debug", logs.Config().Level)
	assert.True(t, a.Logger().Enabled(logx.LevelDebug))
}
