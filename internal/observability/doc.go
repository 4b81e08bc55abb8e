// Package observability provides event logging, metrics calculation,
// alerting, and tracing for the contribution planner. It uses structured
// JSON Lines (JSONL) for event persistence and derives outcome metrics
// on-demand from the event log.
package observability
