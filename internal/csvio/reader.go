package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrUndecodable reports that no candidate encoding produced a clean parse.
var ErrUndecodable = errors.New("no supported encoding could decode file")

// Table is one parsed CSV file: a cleaned header and string-typed rows keyed
// by header cell.
type Table struct {
	Columns  []string
	Rows     []map[string]string
	Encoding string
}

type candidate struct {
	name   string
	decode func([]byte) ([]byte, bool)
}

// Candidates are tried in order. The BOM-tagged UTF-8 variant goes first to
// disambiguate from Shift_JIS look-alikes; ISO-2022-JP last because its
// escape-sequence framing rarely false-positives but decodes slowly.
var candidates = []candidate{
	{"utf-8-sig", decodeUTF8BOM},
	{"utf-8", decodeUTF8},
	{"shift_jis", transformWith(japanese.ShiftJIS)},
	{"euc-jp", transformWith(japanese.EUCJP)},
	{"iso-2022-jp", transformWith(japanese.ISO2022JP)},
}

// ReadFile parses the CSV at path, trying each candidate encoding until one
// yields a clean decode and a syntactically valid table.
func ReadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return Parse(data)
}

// Parse decodes and parses raw CSV bytes. See ReadFile.
func Parse(data []byte) (*Table, error) {
	for _, cand := range candidates {
		decoded, ok := cand.decode(data)
		if !ok {
			continue
		}
		table, err := parseDecoded(decoded)
		if err != nil {
			continue
		}
		table.Encoding = cand.name
		return table, nil
	}
	return nil, ErrUndecodable
}

func parseDecoded(data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("csv has no header row")
	}

	header := records[0]
	columns := make([]string, len(header))
	for i, cell := range header {
		columns[i] = CleanHeaderCell(cell)
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]string, len(columns))
		for i, column := range columns {
			if column == "" {
				continue
			}
			if i < len(record) {
				row[column] = record[i]
			} else {
				row[column] = ""
			}
		}
		rows = append(rows, row)
	}

	return &Table{Columns: columns, Rows: rows}, nil
}

// CleanHeaderCell strips leading/trailing whitespace and control characters
// from a header cell before it is used as a field key.
func CleanHeaderCell(cell string) string {
	return strings.TrimFunc(cell, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r) || r == '\ufeff'
	})
}

func decodeUTF8BOM(data []byte) ([]byte, bool) {
	if !bytes.HasPrefix(data, utf8BOM) {
		return nil, false
	}
	trimmed := data[len(utf8BOM):]
	if !utf8.Valid(trimmed) {
		return nil, false
	}
	return trimmed, true
}

func decodeUTF8(data []byte) ([]byte, bool) {
	if !utf8.Valid(data) {
		return nil, false
	}
	return data, true
}

func transformWith(enc encoding.Encoding) func([]byte) ([]byte, bool) {
	return func(data []byte) ([]byte, bool) {
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return nil, false
		}
		// The x/text decoders substitute U+FFFD for unmappable bytes instead
		// of failing; treat any substitution as a failed all-or-nothing attempt.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			return nil, false
		}
		return decoded, true
	}
}
