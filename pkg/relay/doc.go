// Package relay forwards TCP connections from the Docker bridge address
// to a host-only service, so containers can reach it without host
// networking.
package relay
