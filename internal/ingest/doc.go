// Package ingest orchestrates the CSV processing pipeline: purge stale
// processed files, read every inbox export, normalize and merge bookings,
// replace the canonical output atomically, and relocate consumed files.
// Each run is recorded in a SQLite ledger for the status surfaces.
package ingest
