// Package logstream relays container follow-logs to operator connections,
// as WebSocket frames when the client upgrades or as an SSE line push
// otherwise. The daemon-side follow stream is finite and non-restartable;
// every exit path closes it so connections are never leaked.
package logstream
