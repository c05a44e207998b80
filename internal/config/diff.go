package config

import (
	"reflect"
	"sort"
	"strings"

	logx "notifylog/pkg/logx"
)

// SummarizeChange returns the sorted list of changed sections and safe
// structured attrs for logging a reload. Secrets (database DSN, redis
// password) are reported only as set/unset.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 4)
	attrs := make([]logx.Field, 0, 16)

	ol, nl := oldCfg.Logging, newCfg.Logging
	if !reflect.DeepEqual(ol, nl) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", nl.Level),
			logx.Bool("logging.console", nl.Console.Enabled),
			logx.Bool("logging.file", nl.File.Enabled),
			logx.Bool("logging.email", nl.Email.Enabled),
			logx.Bool("logging.digest", nl.Digest.Enabled),
			logx.String("logging.digest_schedule", strings.TrimSpace(nl.Digest.Schedule)),
			logx.Bool("logging.database", nl.Database.Enabled),
			logx.String("logging.database_driver", strings.TrimSpace(nl.Database.Driver)),
			logx.Bool("logging.database_dsn_set", strings.TrimSpace(nl.Database.DSN) != ""),
		)
	}

	if oldCfg.Mail != newCfg.Mail {
		changed = append(changed, "mail")
		attrs = append(attrs,
			logx.String("mail.sender", strings.TrimSpace(newCfg.Mail.Sender)),
			logx.Bool("mail.reply_to_set", strings.TrimSpace(newCfg.Mail.ReplyTo) != ""),
		)
	}

	on, nn := oldCfg.Notifier, newCfg.Notifier
	if on != nn {
		changed = append(changed, "notifier")
		attrs = append(attrs,
			logx.Int("notifier.days_to_wait", nn.DaysToWait),
			logx.String("notifier.history_driver", strings.TrimSpace(nn.History.Driver)),
			logx.Bool("notifier.history_path_set", strings.TrimSpace(nn.History.Path) != ""),
			logx.Bool("notifier.history_password_set", nn.History.Password != ""),
			logx.Bool("notifier.fail_on_corrupt", nn.History.FailOnCorrupt),
		)
	}

	if names := diffNotifications(oldCfg.Notifications, newCfg.Notifications); len(names) > 0 {
		changed = append(changed, "notifications")
		attrs = append(attrs,
			logx.Int("notifications.count", len(newCfg.Notifications)),
			logx.String("notifications.changed", strings.Join(names, ",")),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// RestartRequired reports whether a change touches settings that only take
// effect when the notifier is rebuilt. Logging is applied live.
func RestartRequired(changed []string) bool {
	for _, s := range changed {
		if s != "logging" {
			return true
		}
	}
	return false
}

func diffNotifications(oldL, newL []NotificationConfig) []string {
	index := func(l []NotificationConfig) map[string]NotificationConfig {
		m := make(map[string]NotificationConfig, len(l))
		for _, n := range l {
			m[strings.TrimSpace(n.Name)] = n
		}
		return m
	}
	om, nm := index(oldL), index(newL)

	set := map[string]struct{}{}
	for k := range om {
		set[k] = struct{}{}
	}
	for k := range nm {
		set[k] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		o, okO := om[name]
		n, okN := nm[name]
		if okO != okN || !reflect.DeepEqual(o, n) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
