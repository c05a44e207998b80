// Package notifier sends operator email alerts and suppresses repeats.
//
// A Notification is a registered alert type: a name, a subject prefix, a
// recipient set and an HTML flag. SendNotification resolves the name, builds a
// candidate Message stamped with the current time and asks the dedup Engine
// whether an identical message (same name, subject suffix and content) was
// sent within the last DaysToWait days. Only new or expired messages are
// dispatched through the mail.Transport.
//
// # History
//
// Sent messages are kept in an in-memory history that is loaded from a
// storage.Store on first use and written back once, on Close. Only active
// records are written: messages sent during this run and older messages that
// suppressed a duplicate during this run. Everything else is pruned, so the
// persisted history never grows past the set of alerts that are still
// relevant.
//
// A history that cannot be decoded is discarded with a warning unless
// Config.FailOnCorrupt is set, in which case the error is returned from the
// first SendNotification that needs it.
//
// Sharing one history between processes is unsupported; there is no locking
// across processes.
package notifier
