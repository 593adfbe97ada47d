package booking

import (
	"strconv"
	"strings"
	"time"

	"kasikai/internal/roomcfg"
)

// slotNames maps the export's slot designators to internal slot identifiers.
var slotNames = map[string]string{
	"午前": SlotMorning,
	"午後": SlotAfternoon,
	"夜間": SlotNight,
}

const (
	wholeDayDesignator = "一日"
	slotSeparator      = "・"
	sourceDateLayout   = "2006年1月2日"
)

// Normalizer expands raw reservation rows into atomic booking records using
// the room roster, column mapping, and split rules from the booking config.
type Normalizer struct {
	cfg   *roomcfg.Config
	rooms map[string]string

	datetimeColumn     string
	roomColumn         string
	amountColumn       string
	cancellationColumn string
}

// NewNormalizer builds a normalizer bound to one configuration snapshot.
func NewNormalizer(cfg *roomcfg.Config) *Normalizer {
	return &Normalizer{
		cfg:                cfg,
		rooms:              cfg.RoomMapping(),
		datetimeColumn:     cfg.Column(roomcfg.FieldBookingDatetime),
		roomColumn:         cfg.Column(roomcfg.FieldRoomName),
		amountColumn:       cfg.Column(roomcfg.FieldTotalAmount),
		cancellationColumn: cfg.Column(roomcfg.FieldCancellationDate),
	}
}

// Cancelled reports whether the row carries a cancellation date. Cancelled
// reservations are excluded before normalization and never produce records.
func (n *Normalizer) Cancelled(row Row) bool {
	return strings.TrimSpace(row[n.cancellationColumn]) != ""
}

// NormalizeRow expands one raw row into zero or more booking records.
//
// The datetime field splits on its last space into a date part and a slot
// designator. A row with no usable date drops entirely, because every record
// key needs the date. An unrecognized slot token drops silently without
// aborting sibling tokens in the same multi-slot designator.
func (n *Normalizer) NormalizeRow(row Row) RowResult {
	if n.Cancelled(row) {
		return RowResult{Skip: SkipCancelled}
	}

	datetimeValue := strings.TrimSpace(row[n.datetimeColumn])
	if datetimeValue == "" {
		return RowResult{Skip: SkipMissingDatetime}
	}

	lastSpace := strings.LastIndexAny(datetimeValue, " 　")
	if lastSpace < 0 {
		return RowResult{Skip: SkipMalformedDatetime}
	}
	datePart := strings.TrimSpace(datetimeValue[:lastSpace])
	slotPart := strings.TrimSpace(datetimeValue[lastSpace:])

	parsed, err := time.Parse(sourceDateLayout, datePart)
	if err != nil {
		return RowResult{Skip: SkipUnparsableDate}
	}
	date := parsed.Format("2006-01-02")

	roomID, ok := n.rooms[strings.TrimSpace(row[n.roomColumn])]
	if !ok {
		return RowResult{Skip: SkipUnknownRoom}
	}

	slots := n.resolveSlots(slotPart)
	if len(slots) == 0 {
		return RowResult{Skip: SkipNoValidSlot}
	}

	isSpecial := n.isSpecialRate(row)

	targets := []string{roomID}
	if rule := n.cfg.EnabledSplit(roomID); rule != nil {
		targets = rule.TargetRoomIDs
	}

	records := make([]Record, 0, len(slots)*len(targets))
	for _, slot := range slots {
		for _, target := range targets {
			records = append(records, Record{
				ID:        RecordID(date, target, slot),
				RoomID:    target,
				Date:      date,
				Slot:      slot,
				IsSpecial: isSpecial,
				Fields:    row.Clone(),
			})
		}
	}
	return RowResult{Records: records}
}

// NormalizeTable normalizes every row, returning the flattened record
// sequence and aggregate skip statistics.
func (n *Normalizer) NormalizeTable(rows []Row) ([]Record, Stats) {
	stats := Stats{RowsIn: len(rows)}
	var records []Record
	for _, row := range rows {
		result := n.NormalizeRow(row)
		if result.Skipped() {
			stats.addSkip(result.Skip)
			continue
		}
		records = append(records, result.Records...)
	}
	stats.RecordsOut = len(records)
	return records, stats
}

func (n *Normalizer) resolveSlots(designator string) []string {
	var tokens []string
	switch {
	case strings.Contains(designator, slotSeparator):
		tokens = strings.Split(designator, slotSeparator)
	case designator == wholeDayDesignator:
		tokens = []string{"午前", "午後", "夜間"}
	default:
		tokens = []string{designator}
	}

	slots := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if slot, ok := slotNames[strings.TrimSpace(token)]; ok {
			slots = append(slots, slot)
		}
	}
	return slots
}

// isSpecialRate reports whether the total-amount field parses to exactly
// zero after thousands separators are stripped. Empty or non-numeric values
// are not special.
func (n *Normalizer) isSpecialRate(row Row) bool {
	amount := strings.TrimSpace(strings.ReplaceAll(row[n.amountColumn], ",", ""))
	if amount == "" {
		return false
	}
	value, err := strconv.ParseFloat(amount, 64)
	if err != nil {
		return false
	}
	return value == 0
}
