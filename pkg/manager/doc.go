/*
Package manager is the orchestration kernel's controller.

A single Manager value owns the persistent store, the runtime adapter, the
workspace provisioner and the in-memory snapshot state, and is shared by
reference between the HTTP handlers, the reconciler and the metrics
collector.

# Lifecycle

Launch runs the whole create-or-restart decision inside the store's
exclusive section:

	derive id → existing? → inspect → conflict / restart
	          → new?      → capacity check → port → token → workspace
	                      → create+start container → persist record

so two concurrent launches for one wallet serialise: exactly one caller
creates (or restarts) and the other observes the result. The gateway token
is generated once at create time and never rotated; it is only ever
returned on the create/restart path itself. Everywhere else records travel
in their safe (token-redacted) form.

Stop and Destroy are narrower: Stop is a grace-period container stop;
Destroy force-removes the container and deletes the record, counters and
snapshot, deliberately leaving the workspace directory on disk.

# Snapshot

The status snapshot and restart counters live behind one mutex and are
written by the reconciler; the controller only seeds (on create),
invalidates (on restart/stop) and drops (on destroy) entries. Readers get
copies. Launch returns before the container reaches running — callers poll
the list or stats endpoints and observe starting for up to one reconciler
period.
*/
package manager
