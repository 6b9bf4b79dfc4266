// Package pathmap rewrites absolute media paths between two hosts'
// categorized directory layouts. Mapping is pure and deterministic: it runs
// once per file at transfer creation and its result is persisted on the
// transfer record.
package pathmap
