// Package types defines the shared data model: the persisted instance
// record, the observed status enum, and the in-memory status snapshot.
package types
