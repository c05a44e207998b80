package config

// Config is the on-disk configuration. Files may be JSON, YAML or TOML; all
// three are decoded through the same strict JSON decoder, so field names are
// the json tags below.
type Config struct {
	Logging       LoggingConfig        `json:"logging"`
	Mail          MailConfig           `json:"mail"`
	Notifier      NotifierConfig       `json:"notifier"`
	Notifications []NotificationConfig `json:"notifications"`
}

// LoggingConfig configures pkg/logx. Levels are trace, debug, info, warn,
// error or none.
type LoggingConfig struct {
	Level    string            `json:"level"`
	Format   LogFormatConfig   `json:"format"`
	Console  ConsoleLogConfig  `json:"console"`
	File     FileLogConfig     `json:"file"`
	Email    EmailLogConfig    `json:"email"`
	Digest   DigestLogConfig   `json:"digest"`
	Database DatabaseLogConfig `json:"database"`
}

type LogFormatConfig struct {
	// TimestampFormat is a Go time layout; "none" omits the timestamp.
	TimestampFormat string `json:"timestamp_format,omitempty"`
	UTC             bool   `json:"utc,omitempty"`
	KeepLineEndings bool   `json:"keep_line_endings,omitempty"`
	LineEnding      string `json:"line_ending,omitempty"`
}

type ConsoleLogConfig struct {
	Enabled bool `json:"enabled"`
	// Stream is stdout, stderr or both.
	Stream   string `json:"stream,omitempty"`
	MinLevel string `json:"min_level,omitempty"`
}

type FileLogConfig struct {
	Enabled   bool   `json:"enabled"`
	Path      string `json:"path"`
	Overwrite bool   `json:"overwrite,omitempty"`
	MinLevel  string `json:"min_level,omitempty"`
}

type EmailLogConfig struct {
	Enabled    bool     `json:"enabled"`
	MinLevel   string   `json:"min_level,omitempty"`
	RatePerSec int      `json:"rate_per_sec,omitempty"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
}

type DigestLogConfig struct {
	Enabled    bool     `json:"enabled"`
	MinLevel   string   `json:"min_level,omitempty"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject,omitempty"`
	// Schedule is a standard 5-field cron spec or a descriptor like "@hourly".
	Schedule  string `json:"schedule,omitempty"`
	SendEmpty bool   `json:"send_empty,omitempty"`
}

// DatabaseLogConfig writes log lines into a table. DSN is a secret and is
// never logged.
type DatabaseLogConfig struct {
	Enabled       bool   `json:"enabled"`
	MinLevel      string `json:"min_level,omitempty"`
	Driver        string `json:"driver"`
	DSN           string `json:"dsn"`
	Table         string `json:"table,omitempty"`
	DateColumn    string `json:"date_column,omitempty"`
	MessageColumn string `json:"message_column,omitempty"`
	LevelColumn   string `json:"level_column,omitempty"`
	CreateTable   bool   `json:"create_table,omitempty"`
}

// MailConfig holds the addressing shared by the notifier and the email log
// sinks. PickupDir is where the default transport drops .eml files.
type MailConfig struct {
	Sender    string `json:"sender"`
	ReplyTo   string `json:"reply_to,omitempty"`
	PickupDir string `json:"pickup_dir,omitempty"`
}

type NotifierConfig struct {
	// DaysToWait <= 0 never suppresses.
	DaysToWait int           `json:"days_to_wait"`
	History    HistoryConfig `json:"history"`
}

// HistoryConfig selects the history store.
//
// Driver values: file (default), sqlite, redis, none.
type HistoryConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`

	Addr     string `json:"addr,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
	Key      string `json:"key,omitempty"`

	FailOnCorrupt bool `json:"fail_on_corrupt,omitempty"`
}

type NotificationConfig struct {
	Name          string   `json:"name"`
	SubjectPrefix string   `json:"subject_prefix"`
	Recipients    []string `json:"recipients"`
	HTML          bool     `json:"html,omitempty"`
}
