package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ProductID identifies a catalog product. Catalog ids are usually integers;
// they are written as JSON numbers when all digits so the backend sees the
// same shape the catalog produced.
type ProductID string

// MarshalJSON writes a number for all-digit ids and a string otherwise.
func (id ProductID) MarshalJSON() ([]byte, error) {
	if isDigits(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a number or string: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

func isDigits(s string) bool {
	if s == "" || (len(s) > 1 && s[0] == '0') {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

// Line is one cart entry. Quantity never goes below zero; a zero line stays
// in the cart but is excluded from counts and orders.
type Line struct {
	ProductID ProductID       `json:"id"`
	Quantity  int             `json:"count"`
	Product   json.RawMessage `json:"item,omitempty"`
}

// Encode serializes lines in the persisted {id, count, item} shape.
func Encode(lines []Line) (string, error) {
	if lines == nil {
		lines = []Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return "", fmt.Errorf("failed to encode cart: %w", err)
	}
	return string(data), nil
}

// Decode parses a persisted cart. Duplicate ids are merged into the first
// occurrence and negative quantities are clamped to zero.
func Decode(raw string) ([]Line, error) {
	var parsed []Line
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}

	lines := make([]Line, 0, len(parsed))
	for _, l := range parsed {
		if l.ProductID == "" {
			continue
		}
		if l.Quantity < 0 {
			l.Quantity = 0
		}
		if idx := indexOf(lines, l.ProductID); idx >= 0 {
			lines[idx].Quantity += l.Quantity
			continue
		}
		lines = append(lines, l)
	}
	return lines, nil
}

func indexOf(lines []Line, id ProductID) int {
	for i := range lines {
		if lines[i].ProductID == id {
			return i
		}
	}
	return -1
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}
