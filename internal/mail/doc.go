// Package mail defines the outgoing message shape and the transport port used
// by the notifier and the email log sinks.
//
// Delivery itself (SMTP sessions, authentication, retries) belongs to the
// Transport implementation supplied by the embedding application. The only
// transport shipped here is PickupTransport, which drops each message as an
// .eml file into a directory for a separate relay or for inspection.
package mail
