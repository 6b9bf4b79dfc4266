// Package config loads and validates the shuttle TOML configuration: the
// host descriptor table, transfer engine tuning, SSH settings, and log
// output options. The daemon loads configuration once at startup; the rest
// of the system only ever sees resolved values.
package config
