// Package hosts models the remote media-server endpoints transfers run
// between. Host descriptors are built once from configuration and are
// immutable for the lifetime of the process.
package hosts
