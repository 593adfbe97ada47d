package roomcfg

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"kasikai/internal/logging"
)

// Semantic column keys recognized by the ingestion pipeline. Any other key in
// csv_column_mapping is presentation-only passthrough.
const (
	FieldBookingDatetime  = "booking_datetime"
	FieldRoomName         = "room_name"
	FieldTotalAmount      = "total_amount"
	FieldCancellationDate = "cancellation_date"
)

// Source column headers used when the mapping omits an entry. These match the
// reservation export schema the system was built around.
const (
	defaultBookingDatetimeColumn  = "利用日時(予約内容)"
	defaultRoomNameColumn         = "会議室(予約内容)"
	defaultTotalAmountColumn      = "合計金額(予約内容)"
	defaultCancellationDateColumn = "取消日(予約内容)"
)

// Room describes one bookable room.
type Room struct {
	CSVName     string `json:"csv_name"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// SplitRule fans one source room's bookings out to multiple target rooms.
type SplitRule struct {
	SourceRoomID  string   `json:"source_room_id"`
	TargetRoomIDs []string `json:"target_room_ids"`
	Enabled       bool     `json:"enabled"`
	Description   string   `json:"description"`
}

// ModalField pairs a display label with the semantic field it shows.
type ModalField struct {
	Label string
	Field string
}

// ModalFields is an order-preserving JSON object of display label to field.
type ModalFields []ModalField

// Config is the booking-domain configuration document.
type Config struct {
	Rooms            []Room            `json:"rooms"`
	InternalRoomIDs  []string          `json:"internal_room_ids"`
	HiddenRoomIDs    []string          `json:"hidden_room_ids"`
	CSVColumnMapping map[string]string `json:"csv_column_mapping"`
	ModalFields      ModalFields       `json:"modal_fields"`
	DataSplitRules   []SplitRule       `json:"data_split_rules"`
}

// RoomMapping returns the csv_name to id table. The first room wins when two
// rooms share a csv_name.
func (c *Config) RoomMapping() map[string]string {
	mapping := make(map[string]string, len(c.Rooms))
	for _, room := range c.Rooms {
		if _, exists := mapping[room.CSVName]; exists {
			continue
		}
		mapping[room.CSVName] = room.ID
	}
	return mapping
}

// Column resolves a semantic field to its source CSV header, falling back to
// the built-in header when the mapping has no entry.
func (c *Config) Column(field string) string {
	if c != nil {
		if header, ok := c.CSVColumnMapping[field]; ok && strings.TrimSpace(header) != "" {
			return header
		}
	}
	switch field {
	case FieldBookingDatetime:
		return defaultBookingDatetimeColumn
	case FieldRoomName:
		return defaultRoomNameColumn
	case FieldTotalAmount:
		return defaultTotalAmountColumn
	case FieldCancellationDate:
		return defaultCancellationDateColumn
	default:
		return field
	}
}

// EnabledSplit returns the first enabled split rule whose source matches
// roomID, or nil when the room is not split.
func (c *Config) EnabledSplit(roomID string) *SplitRule {
	for i := range c.DataSplitRules {
		rule := &c.DataSplitRules[i]
		if rule.Enabled && rule.SourceRoomID == roomID {
			return rule
		}
	}
	return nil
}

// Load reads the configuration document at path. A missing or malformed file
// is logged and replaced by the built-in default; the error return is only
// for callers that want to distinguish the fallback case.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("failed to read booking config, using built-in default",
				logging.String("path", path),
				logging.Error(err),
			)
		} else {
			logger.Warn("booking config not found, using built-in default",
				logging.String("path", path),
			)
		}
		cfg := Default()
		return &cfg, fmt.Errorf("read booking config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Error("invalid booking config JSON, using built-in default",
			logging.String("path", path),
			logging.Error(err),
		)
		fallback := Default()
		return &fallback, fmt.Errorf("parse booking config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration document to path.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal booking config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write booking config: %w", err)
	}
	return nil
}

// MarshalJSON writes the fields as a JSON object in declaration order.
func (m ModalFields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		label, err := json.Marshal(field.Label)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(field.Field)
		if err != nil {
			return nil, err
		}
		buf.Write(label)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object preserving key order.
func (m *ModalFields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("modal_fields: expected object, got %v", tok)
	}
	fields := make(ModalFields, 0, 8)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("modal_fields: non-string key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("modal_fields: value for %q: %w", key, err)
		}
		fields = append(fields, ModalField{Label: key, Field: value})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = fields
	return nil
}
