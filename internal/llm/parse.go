package llm

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/utils"
)

var (
	reAmountJunk = regexp.MustCompile(`[^0-9.,\-]`)
	reThousands  = regexp.MustCompile(`^-?\d{1,3}(,\d{3})+(\.\d+)?$`)
	reDecComma   = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
)

// ParseFields pulls the first JSON object out of a model reply, normalizes
// it to the invoice shape and checks it against the fields schema. dropped
// lists keys that were removed or blanked on the way.
func ParseFields(content string) (entity.Fields, []string, error) {
	obj, ok := FirstJSONObject(content)
	if !ok {
		return entity.Fields{}, nil, fmt.Errorf("%w: no JSON object in response", ErrMalformed)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(obj), &m); err != nil {
		return entity.Fields{}, nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	normalized, dropped := NormalizeFields(m)
	b, err := json.Marshal(normalized)
	if err != nil {
		return entity.Fields{}, dropped, fmt.Errorf("%w: encode: %v", ErrMalformed, err)
	}
	if err := ValidateFieldsJSON(b); err != nil {
		return entity.Fields{}, dropped, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var f entity.Fields
	if err := json.Unmarshal(b, &f); err != nil {
		return entity.Fields{}, dropped, fmt.Errorf("%w: decode fields: %v", ErrMalformed, err)
	}
	return f, dropped, nil
}

// FirstJSONObject returns the first balanced {...} substring of s, honouring
// JSON string quoting. If the braces never balance it falls back to the span
// between the first '{' and the last '}'.
func FirstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	end := strings.LastIndexByte(s, '}')
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// NormalizeFields reshapes a decoded model object into the four invoice keys.
// Unknown keys are dropped; blank or "null" strings become null; amounts
// written as text are converted to numbers when they can be.
func NormalizeFields(m map[string]any) (map[string]any, []string) {
	out := make(map[string]any, len(FieldKeys))
	var dropped []string

	for _, k := range slices.Sorted(maps.Keys(m)) {
		if !slices.Contains(FieldKeys, k) {
			dropped = append(dropped, k+"(unknown)")
		}
	}

	for _, k := range FieldKeys {
		v, ok := m[k]
		if !ok || v == nil {
			out[k] = nil
			continue
		}
		if k == "total_amount" {
			out[k] = normalizeAmount(v)
			continue
		}
		s, ok := textValue(v)
		if !ok {
			out[k] = nil
			dropped = append(dropped, k+"(type)")
			continue
		}
		if k == "due_date" {
			s = utils.FoldDigits(s)
		}
		if isNullText(s) {
			out[k] = nil
			dropped = append(dropped, k+"(empty)")
			continue
		}
		out[k] = s
	}
	return out, dropped
}

func textValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}

func isNullText(s string) bool {
	switch strings.ToLower(s) {
	case "", "null", "none", "n/a":
		return true
	}
	return false
}

// normalizeAmount returns a float64 when v reads as a number and the trimmed
// text otherwise.
func normalizeAmount(v any) any {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		s := strings.TrimSpace(t)
		if isNullText(s) {
			return nil
		}
		if f, ok := parseAmountText(s); ok {
			return f
		}
		return s
	default:
		return fmt.Sprint(t)
	}
}

func parseAmountText(s string) (float64, bool) {
	n := reAmountJunk.ReplaceAllString(utils.FoldDigits(s), "")
	n = strings.Trim(n, ".,")
	switch {
	case n == "":
		return 0, false
	case reThousands.MatchString(n):
		n = strings.ReplaceAll(n, ",", "")
	case reDecComma.MatchString(n):
		n = strings.Replace(n, ",", ".", 1)
	}
	f, err := strconv.ParseFloat(n, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
