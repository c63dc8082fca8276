package systemd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

type recorder struct {
	mu     sync.Mutex
	states []string
	err    error
}

func (r *recorder) send(_ bool, state string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return r.err == nil, r.err
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

func TestNotifierStates(t *testing.T) {
	r := &recorder{}
	n := &Notifier{send: r.send}

	if !n.Ready() || !n.Status("ok") || !n.Stopping() {
		t.Fatal("expected all notifications to report sent")
	}
	want := []string{daemon.SdNotifyReady, "STATUS=ok", daemon.SdNotifyStopping}
	got := r.got()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNotifierErrorIsSwallowed(t *testing.T) {
	r := &recorder{err: errors.New("socket gone")}
	n := &Notifier{send: r.send}
	if n.Ready() {
		t.Fatal("Ready should report false on error")
	}
}

func TestWatchdogWithoutSocketReturns(t *testing.T) {
	t.Setenv("WATCHDOG_USEC", "")
	t.Setenv("WATCHDOG_PID", "")
	done := make(chan struct{})
	go func() {
		(&Notifier{}).Watchdog(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watchdog should return when no watchdog is configured")
	}
}

func TestWatchdogLoopPings(t *testing.T) {
	r := &recorder{}
	n := &Notifier{send: r.send}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { n.watchdogLoop(ctx, 5*time.Millisecond); close(done) }()

	deadline := time.After(2 * time.Second)
	for len(r.got()) < 2 {
		select {
		case <-deadline:
			t.Fatal("no watchdog pings")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
	if r.got()[0] != daemon.SdNotifyWatchdog {
		t.Fatalf("ping = %q", r.got()[0])
	}
}
