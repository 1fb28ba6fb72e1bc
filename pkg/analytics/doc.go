// Package analytics reports completed proxy requests to the remote
// ingestion endpoint. Delivery is strictly best-effort: events are
// enqueued to a buffered channel and dispatched by a background worker
// with a single bounded attempt per event. A full buffer or a failed
// delivery drops the event with a log line; nothing in this package may
// block or fail a client's stream.
package analytics
