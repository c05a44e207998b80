package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"notifylog/internal/mail"
	logx "notifylog/pkg/logx"
)

// Validate checks a decoded config before it is committed. It is fast and has
// no side effects; it returns the first problem found.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if err := validateLogging(&cfg.Logging, cfg.Mail.Sender); err != nil {
		return err
	}
	if err := validateAddress("mail.sender", cfg.Mail.Sender, true); err != nil {
		return err
	}
	if err := validateAddress("mail.reply_to", cfg.Mail.ReplyTo, false); err != nil {
		return err
	}
	if err := validateHistory(&cfg.Notifier.History); err != nil {
		return err
	}

	seen := map[string]int{}
	for i, n := range cfg.Notifications {
		at := fmt.Sprintf("notifications[%d]", i)
		name := strings.TrimSpace(n.Name)
		if name == "" {
			return fmt.Errorf("%s.name is required", at)
		}
		if j, dup := seen[name]; dup {
			return fmt.Errorf("%s: name %q already used by notifications[%d]", at, name, j)
		}
		seen[name] = i
		if err := validateRecipients(at+".recipients", n.Recipients); err != nil {
			return err
		}
	}
	return nil
}

func validateLogging(l *LoggingConfig, sender string) error {
	levels := []struct{ path, v string }{
		{"logging.level", l.Level},
		{"logging.console.min_level", l.Console.MinLevel},
		{"logging.file.min_level", l.File.MinLevel},
		{"logging.email.min_level", l.Email.MinLevel},
		{"logging.digest.min_level", l.Digest.MinLevel},
		{"logging.database.min_level", l.Database.MinLevel},
	}
	for _, lv := range levels {
		if strings.TrimSpace(lv.v) == "" {
			continue
		}
		if _, ok := logx.ParseLevel(lv.v); !ok {
			return fmt.Errorf("%s: unknown level %q", lv.path, lv.v)
		}
	}

	switch strings.ToLower(strings.TrimSpace(l.Console.Stream)) {
	case "", "stdout", "stderr", "both":
	default:
		return fmt.Errorf("logging.console.stream: must be stdout, stderr or both")
	}

	if l.Email.Enabled || l.Digest.Enabled {
		if strings.TrimSpace(sender) == "" {
			return fmt.Errorf("mail.sender is required when email logging is enabled")
		}
	}
	if l.Email.Enabled {
		if err := validateRecipients("logging.email.recipients", l.Email.Recipients); err != nil {
			return err
		}
		if l.Email.RatePerSec < 0 {
			return fmt.Errorf("logging.email.rate_per_sec: must be >= 0")
		}
	}
	if l.Digest.Enabled {
		if err := validateRecipients("logging.digest.recipients", l.Digest.Recipients); err != nil {
			return err
		}
		if s := strings.TrimSpace(l.Digest.Schedule); s != "" {
			if _, err := cron.ParseStandard(s); err != nil {
				return fmt.Errorf("logging.digest.schedule: %w", err)
			}
		}
	}
	if l.File.Enabled && strings.TrimSpace(l.File.Path) == "" {
		return fmt.Errorf("logging.file.path is required when the file sink is enabled")
	}
	if l.Database.Enabled {
		switch strings.ToLower(strings.TrimSpace(l.Database.Driver)) {
		case "", "sqlite", "sqlite3", "mysql":
		default:
			return fmt.Errorf("logging.database.driver: unknown driver %q", l.Database.Driver)
		}
		if strings.TrimSpace(l.Database.DSN) == "" {
			return fmt.Errorf("logging.database.dsn is required when the database sink is enabled")
		}
	}
	return nil
}

func validateHistory(h *HistoryConfig) error {
	if _, err := ParseDurationField("notifier.history.busy_timeout", h.BusyTimeout); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(h.Driver)) {
	case "", "file", "none":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(h.Path) == "" {
			return fmt.Errorf("notifier.history.path is required for the sqlite driver")
		}
	case "redis":
		if strings.TrimSpace(h.Addr) == "" {
			return fmt.Errorf("notifier.history.addr is required for the redis driver")
		}
		if h.DB < 0 {
			return fmt.Errorf("notifier.history.db: must be >= 0")
		}
	default:
		return fmt.Errorf("notifier.history.driver: unknown driver %q", h.Driver)
	}
	return nil
}

func validateAddress(path, v string, required bool) error {
	if strings.TrimSpace(v) == "" {
		if required {
			return fmt.Errorf("%s is required", path)
		}
		return nil
	}
	if _, err := mail.ParseAddress(v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func validateRecipients(path string, in []string) error {
	to, err := mail.NormalizeRecipients(in)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(to) == 0 {
		return fmt.Errorf("%s: at least one recipient is required", path)
	}
	return nil
}

// ParseDurationField parses a Go duration string. Empty is zero; negative
// values are rejected. path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
