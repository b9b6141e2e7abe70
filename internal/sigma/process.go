package sigma

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Label classifies a process into a quality tier.
type Label string

const (
	LabelRed    Label = "RED"
	LabelYellow Label = "YELLOW"
	LabelGreen  Label = "GREEN"
)

// Count is a non-negative trial count. It accepts JSON numbers with an
// integral value (including exponent notation such as 1e6) and numeric
// strings such as "1500"; fractional or non-numeric values are rejected.
// Negative values parse successfully and are rejected during evaluation so
// the caller gets a field-level validation message instead of a decode error.
type Count int64

func (c *Count) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	v, err := parseCount("count", s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseCount converts a query-parameter string into a Count, applying the
// same coercion rules as JSON decoding. The field name is used in error
// messages.
func ParseCount(field, s string) (Count, error) {
	return parseCount(field, s)
}

func parseCount(field, s string) (Count, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, newValidationError(field, "value is required")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Count(n), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, newValidationError(field, "%q is not a number", s)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, newValidationError(field, "%q is not a finite number", s)
	}
	if f != math.Trunc(f) {
		return 0, newValidationError(field, "%q has a fractional part, expected a whole number", s)
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, newValidationError(field, "%q is out of range", s)
	}
	return Count(f), nil
}

// Process is a single evaluation request: how many tests ran and how many
// of them failed. Name is optional and only used for display.
type Process struct {
	Tests Count  `json:"tests"`
	Fails Count  `json:"fails"`
	Name  string `json:"name,omitempty"`
}

// Result is the immutable outcome of evaluating one Process. Field order
// matters: it defines the serialized layout consumed by HTTP clients.
type Result struct {
	Tests      int64   `json:"tests"`
	Fails      int64   `json:"fails"`
	Name       string  `json:"name"`
	DefectRate float64 `json:"defect_rate"`
	Sigma      float64 `json:"sigma"`
	Label      Label   `json:"label"`
}

// MarshalProcessList serializes results for the Process-List response header.
func MarshalProcessList(results []Result) (string, error) {
	b, err := json.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
