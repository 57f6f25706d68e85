// Package alert turns detected transits into persisted, human-readable
// alerts. The Generator phrases one transit with a generative text Provider
// and falls back to deterministic copy when the provider fails, so a caller
// always receives a stored alert. The Service drives the Generator over
// batches behind a pacing queue and aggregates per-user statistics.
package alert
