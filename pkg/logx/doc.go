// Package logx configures notifylog's structured logging.
//
// Logger is a small value-type wrapper over zerolog. Service owns the sinks
// and can swap them at runtime (Apply) when the config file changes:
//   - console: human readable zerolog ConsoleWriter on stdout and/or stderr
//   - file: plain-text lines, appended or overwritten per run
//   - email: one rate-limited email per line, sent off the logging path
//   - digest: lines accumulated into a single email, flushed on a cron schedule
//   - database: one row per line (sqlite or mysql)
//
// Every sink has its own minimum level on top of the global one. The
// plain-text sinks share one line format: "<timestamp> [LEVEL] message k=v".
package logx
