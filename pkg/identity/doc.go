// Package identity derives the stable 12-character instance id from a
// wallet public key.
package identity
