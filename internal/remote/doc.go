// Package remote owns the persistent SSH sessions used to drive commands
// on the configured hosts. One authenticated connection exists per
// host:port at a time; each command runs on its own channel so concurrent
// transfers to the same host do not interleave their I/O streams.
package remote
