// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set. The
// Dispatcher polls the queue for flagged comparison results and pushes each
// one exactly once, marking it notified only after a successful delivery.
//
// Extend this package if you need alternative transports; all workflow code
// depends only on the simple Service interface.
package notifications
