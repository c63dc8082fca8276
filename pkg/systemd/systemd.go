// Package systemd reports service state to the service manager over the
// sd_notify socket. Every call is a no-op when NOTIFY_SOCKET is unset, so the
// binary behaves the same outside systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "hwbot/pkg/logx"
)

// Notifier sends sd_notify messages. The zero value is ready to use.
type Notifier struct {
	Log logx.Logger

	// send replaces daemon.SdNotify in tests.
	send func(unsetEnv bool, state string) (bool, error)
}

func (n *Notifier) notify(state string) bool {
	send := n.send
	if send == nil {
		send = daemon.SdNotify
	}
	ok, err := send(false, state)
	if err != nil {
		n.Log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return ok
}

// Ready tells systemd that startup finished (Type=notify units).
func (n *Notifier) Ready() bool { return n.notify(daemon.SdNotifyReady) }

// Stopping tells systemd that shutdown has begun.
func (n *Notifier) Stopping() bool { return n.notify(daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by `systemctl status`.
func (n *Notifier) Status(s string) bool { return n.notify("STATUS=" + s) }

// Watchdog pings the watchdog at half the configured WatchdogSec until ctx is
// done. It returns immediately when the unit has no watchdog.
func (n *Notifier) Watchdog(ctx context.Context) {
	every, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.Log.Warn("sd watchdog check failed", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	n.watchdogLoop(ctx, every/2)
}

func (n *Notifier) watchdogLoop(ctx context.Context, interval time.Duration) {
	n.Log.Debug("sd watchdog enabled", logx.Duration("interval", interval))
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
