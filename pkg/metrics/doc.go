// Package metrics turns the orchestrator's store and status snapshot into
// a Prometheus text exposition (format 0.0.4). Per-instance samples are
// labelled with the instance id and its wallet pubkey; the gateway token
// never appears here.
package metrics
