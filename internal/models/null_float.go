package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// NullFloat is a float64 that distinguishes "absent" from zero. It decodes
// JSON numbers and numeric strings; null or anything non-numeric decodes to
// absent rather than an error, so one malformed field never rejects a whole
// record during ingestion.
type NullFloat struct {
	Float64 float64
	Valid   bool
}

// NewNullFloat returns a present value.
func NewNullFloat(v float64) NullFloat {
	return NullFloat{Float64: v, Valid: true}
}

func (n *NullFloat) UnmarshalJSON(data []byte) error {
	n.Float64 = 0
	n.Valid = false

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}

	var num float64
	if err := json.Unmarshal(trimmed, &num); err == nil {
		n.set(num)
		return nil
	}

	// Upstream occasionally serializes prices as strings
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			n.set(f)
		}
	}

	return nil
}

func (n *NullFloat) set(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	n.Float64 = v
	n.Valid = true
}

func (n NullFloat) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Float64)
}

// Ptr returns the value as a nullable pointer for storage and API payloads.
func (n NullFloat) Ptr() *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}
