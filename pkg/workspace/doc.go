// Package workspace materialises per-instance state on disk: the config
// directory holding openclaw.json (with the per-instance gateway token),
// the bind-mounted workspace directory, the IDENTITY.md marker, and
// optional template seeding that never overwrites existing files.
package workspace
