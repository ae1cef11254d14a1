/*
Package runtime is the narrow façade over the Docker daemon.

It exposes exactly the operations the orchestration kernel needs (create,
start, stop, remove, inspect, stats sample, log tail, log follow) and
collapses every SDK failure into a closed taxonomy:

  - ErrNotFound — the daemon answered; no such container
  - ErrUnreachable — the daemon was not contactable
  - *APIError — the daemon responded with an error (message capped at 500
    bytes)

Each operation carries its own bounded timeout; nothing in this package
blocks indefinitely except FollowLogs, whose lifetime is the caller's
context and whose Close releases the daemon connection.

The adapter carries no policy: ContainerSpec enumerates every decision
(command, env, binds, published port, resource caps, security profile) and
is translated into the create request verbatim.
*/
package runtime
