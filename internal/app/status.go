package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"hwbot/internal/eventbus"
	"hwbot/internal/notifier"
	"hwbot/internal/poll"
	"hwbot/internal/runtime/supervisor"
	kit "hwbot/internal/transport"
	logx "hwbot/pkg/logx"
)

// statusBoard keeps the counters shown by /status. It is fed from the event
// bus, so it never touches poll state directly.
type statusBoard struct {
	mu sync.Mutex

	started  time.Time
	schedule string
	policy   poll.Policy

	cycles   int
	failures int
	alerts   int
	sent     int
	unsent   int
	last     *poll.CycleEvent
}

func newStatusBoard(started time.Time, sched poll.Schedule, policy poll.Policy) *statusBoard {
	return &statusBoard{started: started, schedule: sched.String(), policy: policy}
}

// observe folds one bus event into the board. It returns the cycle event
// when e was one.
func (b *statusBoard) observe(e eventbus.Event) (poll.CycleEvent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch e.Type {
	case eventbus.TypeCycle:
		ev, ok := e.Data.(poll.CycleEvent)
		if !ok {
			return poll.CycleEvent{}, false
		}
		b.cycles++
		if ev.Error != "" {
			b.failures++
		}
		if ev.Alerted {
			b.alerts++
		}
		b.last = &ev
		return ev, true
	case eventbus.TypeNotifySent:
		b.sent++
	case eventbus.TypeNotifyFailed:
		b.unsent++
	}
	return poll.CycleEvent{}, false
}

// summary is the one-line form used for the systemd status.
func summary(ev poll.CycleEvent) string {
	s := fmt.Sprintf("last cycle %s: %s, %d items", ev.Started.Format(time.TimeOnly), ev.Kind, ev.Items)
	if ev.Error != "" {
		s += ": " + ev.Error
	}
	return s
}

func (b *statusBoard) render(now time.Time, tasks supervisor.Counters, history []notifier.HistoryItem) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Uptime: %s\n", now.Sub(b.started).Truncate(time.Second))
	fmt.Fprintf(&sb, "Schedule: %s, policy %s\n", b.schedule, b.policy)
	fmt.Fprintf(&sb, "Cycles: %d (failed %d, alerts %d)\n", b.cycles, b.failures, b.alerts)
	fmt.Fprintf(&sb, "Messages: %d sent, %d failed\n", b.sent, b.unsent)
	fmt.Fprintf(&sb, "Tasks: %d running, %d started\n", tasks.Active, tasks.Started)
	if b.last == nil {
		sb.WriteString("Last cycle: none yet\n")
	} else {
		l := b.last
		fmt.Fprintf(&sb, "Last cycle: %s (%s ago), %s in %s\n",
			l.Started.Format(time.DateTime), now.Sub(l.Started).Truncate(time.Second), l.Kind, l.Took.Truncate(time.Millisecond))
		fmt.Fprintf(&sb, "Items: %d fetched, %d tracked\n", l.Items, l.Tracked)
		fmt.Fprintf(&sb, "Cursor: %s\n", l.Cursor.Format(time.DateTime))
		if l.Error != "" {
			fmt.Fprintf(&sb, "Error: %s\n", l.Error)
		}
	}
	if len(history) > 0 {
		sb.WriteString("Recent:\n")
		const show = 5
		if len(history) > show {
			history = history[len(history)-show:]
		}
		for _, h := range history {
			mark := "ok"
			if h.Err != "" {
				mark = "failed"
			}
			fmt.Fprintf(&sb, "%s [%s] %s\n", h.At.Format(time.TimeOnly), mark, h.Text)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (a *App) statusLoop(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if ev, ok := a.status.observe(e); ok {
				a.sd.Status(summary(ev))
			}
		}
	}
}

const helpText = "Commands:\n/status - poll loop state and recent notifications\n/help - this message"

func (a *App) commandLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-a.updates:
			a.handleMessage(ctx, m)
		}
	}
}

// handleMessage answers commands sent from the notification chat. Anything
// else, and anything from other chats, is ignored.
func (a *App) handleMessage(ctx context.Context, m kit.Message) {
	cmd := commandName(m.Text)
	if cmd == "" {
		return
	}
	if m.ChatID != a.chatID.Load() {
		a.log.Debug("command from foreign chat ignored", logx.Int64("chat_id", m.ChatID), logx.String("cmd", cmd))
		return
	}

	var reply string
	switch cmd {
	case "status":
		reply = a.status.render(time.Now(), a.sup.Counters(), a.notif.History())
	case "help", "start":
		reply = helpText
	default:
		return
	}
	to := kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID}
	if _, err := a.adapter.SendText(ctx, to, reply, &kit.SendOptions{DisablePreview: true}); err != nil {
		a.log.Warn("command reply failed", logx.String("cmd", cmd), logx.Err(err))
	}
}

// commandName returns "status" for "/status", "/status@hwbot" or
// "/Status extra", and "" for text that is not a command.
func commandName(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name, _, _ := strings.Cut(text[1:], " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}
