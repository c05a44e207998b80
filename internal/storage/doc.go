// Package storage persists the notifier's sent-notification history.
//
// A Store holds exactly one list of records. Save replaces the list as a
// whole and never leaves a half-written list behind:
//   - "file": a JSON document, written to a temp file and renamed into place
//   - "sqlite": one table, replaced inside a single transaction
//   - "redis": one key holding the same JSON document as the file driver
//
// Exactly one live process may own a given history at a time; there is no
// cross-process locking.
package storage
