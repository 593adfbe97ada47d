// Package roomcfg models the booking-domain configuration: the room roster,
// the mapping from source CSV column headers to semantic fields, and the
// rules that split combined-hall bookings into their constituent rooms.
//
// The configuration is a JSON document maintained by an external editor.
// Loading never fails hard: a missing or malformed file falls back to the
// built-in default so ingestion stays operable without setup.
package roomcfg
