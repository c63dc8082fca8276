// Package notifier delivers notification text to the one configured chat.
//
// Delivery is synchronous from the caller's point of view: Deliver blocks on
// the token bucket and on the transport, then returns. Failures are logged and
// returned for accounting, but callers treat them as non-fatal; a notification
// that could not be sent never aborts a poll cycle.
//
// # History
//
// A small in-memory ring of recent deliveries backs the /status command.
package notifier
