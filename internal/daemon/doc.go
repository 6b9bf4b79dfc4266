// Package daemon ties the transfer engine, session manager, and event hub
// together behind a single-instance lock and an HTTP API.
package daemon
