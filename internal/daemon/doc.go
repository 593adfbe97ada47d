// Package daemon wires the ingestion runner, inbox watcher, and dashboard
// server into a single-instance background service.
package daemon
