/*
Package store persists the instance-id → record mapping.

The backing artifact is a single key-sorted JSON file (data/instances.json)
so the operator can read and hand-edit it with the daemon stopped. Two
mechanisms make it safe:

  - an advisory exclusive flock, taken on a sidecar .lock file, serialises
    every read-modify-write section across processes and goroutines;
  - writes go to a temp file in the same directory and land via rename, so
    a crash mid-write leaves the previous version intact.

Pure reads (Load) skip the lock and instead tolerate a concurrently
rewritten file by retrying the parse once. An empty or missing file is an
empty mapping, not an error.

The lifecycle controller holds one Update section across an entire
create-or-restart decision; that is what keeps two concurrent launches for
the same wallet from racing past the existence check, and what makes port
allocation (DB.NextPort) race-free.
*/
package store
