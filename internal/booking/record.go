package booking

import "fmt"

// Slot identifiers for the three daily time segments.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotNight     = "night"
)

// Row is one raw CSV record keyed by source column header.
type Row map[string]string

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	clone := make(Row, len(r))
	for key, value := range r {
		clone[key] = value
	}
	return clone
}

// Record is one atomic booking: a single room for a single slot on a single
// date. ID, RoomID, Date, Slot, and IsSpecial are pipeline bookkeeping used
// for deduplication; only Fields is persisted to the canonical output.
type Record struct {
	ID        string
	RoomID    string
	Date      string
	Slot      string
	IsSpecial bool
	Fields    Row
}

// RecordID builds the composite dedup key for a booking.
func RecordID(date, roomID, slot string) string {
	return fmt.Sprintf("%s-%s-%s", date, roomID, slot)
}

// SkipReason tags why a raw row produced no records.
type SkipReason string

const (
	SkipNone              SkipReason = ""
	SkipCancelled         SkipReason = "cancelled"
	SkipMissingDatetime   SkipReason = "missing_datetime"
	SkipMalformedDatetime SkipReason = "malformed_datetime"
	SkipUnparsableDate    SkipReason = "unparsable_date"
	SkipUnknownRoom       SkipReason = "unknown_room"
	SkipNoValidSlot       SkipReason = "no_valid_slot"
)

// RowResult is the outcome of normalizing one raw row: either a non-empty
// record set, or a tagged skip reason. Using a result value instead of error
// control flow lets callers aggregate skip statistics cheaply.
type RowResult struct {
	Records []Record
	Skip    SkipReason
}

// Skipped reports whether the row produced no records.
func (r RowResult) Skipped() bool {
	return r.Skip != SkipNone
}

// Stats aggregates normalization outcomes across a table or run.
type Stats struct {
	RowsIn     int
	RecordsOut int
	Skips      map[SkipReason]int
}

func (s *Stats) addSkip(reason SkipReason) {
	if s.Skips == nil {
		s.Skips = make(map[SkipReason]int)
	}
	s.Skips[reason]++
}

// Merge accumulates other into s.
func (s *Stats) Merge(other Stats) {
	s.RowsIn += other.RowsIn
	s.RecordsOut += other.RecordsOut
	for reason, count := range other.Skips {
		if s.Skips == nil {
			s.Skips = make(map[SkipReason]int)
		}
		s.Skips[reason] += count
	}
}
