package booking

import "sort"

// Merger accumulates normalized records across files, resolving key
// collisions last-writer-wins. Because files merge in chronological order,
// the surviving record for any booking key reflects the newest export.
type Merger struct {
	normalizer *Normalizer
	records    map[string]Record
	columns    []string
	seen       map[string]struct{}
	stats      Stats
}

// NewMerger builds an empty merger using the given normalizer.
func NewMerger(normalizer *Normalizer) *Merger {
	return &Merger{
		normalizer: normalizer,
		records:    make(map[string]Record),
		seen:       make(map[string]struct{}),
	}
}

// AddTable normalizes one file's rows and merges the resulting records,
// returning that file's normalization statistics. Later additions with the
// same booking key replace earlier ones.
func (m *Merger) AddTable(columns []string, rows []Row) Stats {
	for _, column := range columns {
		if column == "" {
			continue
		}
		if _, ok := m.seen[column]; ok {
			continue
		}
		m.seen[column] = struct{}{}
		m.columns = append(m.columns, column)
	}

	records, stats := m.normalizer.NormalizeTable(rows)
	for _, record := range records {
		m.records[record.ID] = record
	}
	m.stats.Merge(stats)
	return stats
}

// Records returns the merged records sorted by booking key. The key embeds
// the ISO date first, so the order is chronological and deterministic.
func (m *Merger) Records() []Record {
	out := make([]Record, 0, len(m.records))
	for _, record := range m.records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Columns returns the union of source columns in first-encounter order.
func (m *Merger) Columns() []string {
	return m.columns
}

// Stats returns normalization statistics aggregated over all added tables.
func (m *Merger) Stats() Stats {
	return m.stats
}

// Len reports the number of distinct booking keys currently held.
func (m *Merger) Len() int {
	return len(m.records)
}
