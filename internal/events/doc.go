// Package events fans transfer lifecycle events out to subscribers.
// Publishing is best-effort and never blocks: events land in a bounded ring
// and slow consumers simply miss history, they cannot stall the transfer
// engine.
package events
