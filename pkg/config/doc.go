// Package config resolves the launcher configuration: built-in defaults,
// overlaid by an optional YAML file, overridden by environment variables
// (with .env autoloading for development).
package config
