// Package booking turns raw reservation CSV rows into atomic booking
// records: one record per room per time slot, with combined-hall bookings
// fanned out to their constituent rooms and duplicates resolved by a
// deterministic composite key.
package booking
