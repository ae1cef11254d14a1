/*
Package log provides structured logging for the launcher using zerolog.

The package wraps zerolog behind a small facade: a global logger initialized
once via Init, JSON or console output, and helpers that attach common context
fields.

Usage:

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	reconLog := log.WithComponent("reconciler")
	reconLog.Warn().
		Str("instance_id", id).
		Str("status", status).
		Msg("instance left running state")

Component loggers (WithComponent) are used by every subsystem. WithInstanceID
returns a logger carrying the instance_id field; the subsystems in this
module add instance_id per event with Str instead. Never log the gateway
token or any other per-instance secret.
*/
package log
