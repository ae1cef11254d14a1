// Package reconciler runs the background health pass: every period it
// refreshes each instance's status snapshot from the runtime, samples
// telemetry for running containers, and counts running → terminated
// transitions as unexpected restarts. Observations are descriptive only;
// records are never created or destroyed here.
package reconciler
