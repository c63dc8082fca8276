package app

import (
	"context"
	"reflect"
	"strings"

	"hwbot/internal/config"
	logx "hwbot/pkg/logx"
)

// changedSections lists the top-level config sections that differ.
func changedSections(oldCfg, newCfg *config.Config) []string {
	if oldCfg == nil {
		oldCfg = &config.Config{}
	}
	var out []string
	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		out = append(out, "telegram")
	}
	if !reflect.DeepEqual(oldCfg.Practicum, newCfg.Practicum) {
		out = append(out, "practicum")
	}
	if oldCfg.Poll != newCfg.Poll {
		out = append(out, "poll")
	}
	if oldCfg.Notifier != newCfg.Notifier {
		out = append(out, "notifier")
	}
	if oldCfg.Logging != newCfg.Logging {
		out = append(out, "logging")
	}
	return out
}

// restartOnly are sections whose changes take effect on the next start.
var restartOnly = map[string]bool{"practicum": true, "poll": true}

// telegramNeedsRestart reports changes to the connection itself; chat and
// thread ids are applied live.
func telegramNeedsRestart(o, n config.TelegramConfig) bool {
	return o.Token != n.Token || o.PollTimeout != n.PollTimeout || o.CommandsEnabled() != n.CommandsEnabled()
}

func (a *App) reloadLoop(ctx context.Context, updates <-chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-updates:
			if !ok {
				return
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(oldCfg, newCfg *config.Config) {
	sections := changedSections(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}

	prevLevel := a.logs.Config().Level
	a.logs.Apply(mapLogConfig(newCfg))
	if lvl := a.logs.Config().Level; lvl != prevLevel {
		a.log.Info("log level changed", logx.String("from", prevLevel), logx.String("to", lvl))
	}

	ncfg, err := mapNotifierConfig(newCfg)
	if err != nil {
		a.log.Warn("invalid notifier config; keeping previous", logx.Err(err))
	} else {
		a.notif.Apply(ncfg)
		a.chatID.Store(newCfg.Telegram.ChatID)
	}

	var restart []string
	for _, s := range sections {
		if restartOnly[s] {
			restart = append(restart, s)
		}
	}
	if oldCfg != nil && telegramNeedsRestart(oldCfg.Telegram, newCfg.Telegram) {
		restart = append(restart, "telegram")
	}
	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	a.log.Info("config applied", logx.String("changed", strings.Join(sections, ",")))
}
