package app

import (
	"strings"
	"time"

	"notifylog/internal/config"
	"notifylog/internal/notifier"
	"notifylog/internal/storage"
	logx "notifylog/pkg/logx"
)

const defaultBusyTimeout = time.Second

// mapStorageConfig returns enabled=false for the "none" driver. An empty
// driver means the file store at its default path.
func mapStorageConfig(cfg *config.Config) (storage.Config, bool, error) {
	h := cfg.Notifier.History
	driver := strings.ToLower(strings.TrimSpace(h.Driver))
	switch driver {
	case "none":
		return storage.Config{}, false, nil
	case "":
		driver = "file"
	}

	busy, err := config.ParseDurationOrDefault("notifier.history.busy_timeout", h.BusyTimeout, defaultBusyTimeout)
	if err != nil {
		return storage.Config{}, false, err
	}
	return storage.Config{
		Driver:      driver,
		Path:        strings.TrimSpace(h.Path),
		BusyTimeout: busy,
		Addr:        strings.TrimSpace(h.Addr),
		Password:    h.Password,
		DB:          h.DB,
		Key:         strings.TrimSpace(h.Key),
	}, true, nil
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		DaysToWait:    cfg.Notifier.DaysToWait,
		Sender:        cfg.Mail.Sender,
		ReplyTo:       cfg.Mail.ReplyTo,
		FailOnCorrupt: cfg.Notifier.History.FailOnCorrupt,
	}
}

func mapNotifications(cfg *config.Config) []notifier.Notification {
	out := make([]notifier.Notification, 0, len(cfg.Notifications))
	for _, n := range cfg.Notifications {
		out = append(out, notifier.Notification{
			Name:          n.Name,
			SubjectPrefix: n.SubjectPrefix,
			Recipients:    append([]string(nil), n.Recipients...),
			BodyIsHTML:    n.HTML,
		})
	}
	return out
}

// mapLogConfig fills the email sinks' sender and reply-to from the mail
// section so they are configured in one place.
func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level: l.Level,
		Format: logx.FormatConfig{
			TimestampFormat: l.Format.TimestampFormat,
			UTC:             l.Format.UTC,
			KeepLineEndings: l.Format.KeepLineEndings,
			LineEnding:      l.Format.LineEnding,
		},
		Console: logx.ConsoleConfig{
			Enabled:  l.Console.Enabled,
			Stream:   l.Console.Stream,
			MinLevel: l.Console.MinLevel,
		},
		File: logx.FileConfig{
			Enabled:   l.File.Enabled,
			Path:      l.File.Path,
			Overwrite: l.File.Overwrite,
			MinLevel:  l.File.MinLevel,
		},
		Email: logx.EmailConfig{
			Enabled:    l.Email.Enabled,
			MinLevel:   l.Email.MinLevel,
			RatePerSec: l.Email.RatePerSec,
			From:       cfg.Mail.Sender,
			ReplyTo:    cfg.Mail.ReplyTo,
			Recipients: l.Email.Recipients,
			Subject:    l.Email.Subject,
		},
		Digest: logx.DigestConfig{
			Enabled:    l.Digest.Enabled,
			MinLevel:   l.Digest.MinLevel,
			From:       cfg.Mail.Sender,
			ReplyTo:    cfg.Mail.ReplyTo,
			Recipients: l.Digest.Recipients,
			Subject:    l.Digest.Subject,
			Schedule:   l.Digest.Schedule,
			SendEmpty:  l.Digest.SendEmpty,
		},
		Database: logx.DatabaseConfig{
			Enabled:       l.Database.Enabled,
			MinLevel:      l.Database.MinLevel,
			Driver:        l.Database.Driver,
			DSN:           l.Database.DSN,
			Table:         l.Database.Table,
			DateColumn:    l.Database.DateColumn,
			MessageColumn: l.Database.MessageColumn,
			LevelColumn:   l.Database.LevelColumn,
			CreateTable:   l.Database.CreateTable,
		},
	}
}
