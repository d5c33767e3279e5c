package entity

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/utils"
)

// Amount is a total_amount as it was received: a JSON number from the
// extractor, or whatever text a reviewer typed. Keeping the raw text lets
// validation report "not a number" instead of losing the input at decode time.
type Amount struct {
	raw string
}

var errNotFinite = errors.New("amount is not a finite number")

// NewAmount wraps a numeric value.
func NewAmount(v float64) *Amount {
	return &Amount{raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

// ParseAmount wraps reviewer or model text without interpreting it.
func ParseAmount(s string) *Amount {
	return &Amount{raw: strings.TrimSpace(s)}
}

// String returns the raw text.
func (a Amount) String() string { return a.raw }

// Float64 coerces the amount to a number. Arabic-Indic digits are accepted;
// grouping separators are not.
func (a Amount) Float64() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(utils.FoldDigits(a.raw)), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

// MarshalJSON emits a JSON number when the amount is numeric and a JSON string otherwise.
func (a Amount) MarshalJSON() ([]byte, error) {
	if f, err := a.Float64(); err == nil {
		return json.Marshal(f)
	}
	return json.Marshal(a.raw)
}

// UnmarshalJSON accepts numbers, strings and, leniently, any other scalar.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		a.raw = strings.TrimSpace(s)
		return nil
	}
	a.raw = string(data)
	return nil
}
