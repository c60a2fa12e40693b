package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"praondefoi/internal/core"
)

// Decode parses a response body keeping numbers exact. A body that is not
// JSON yields ErrMalformedResponse and a nil payload, which every normalizer
// treats as empty.
func Decode(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)
	}
	return v, nil
}

// Object returns v as a JSON object.
func Object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// Lookup returns the first non-null value stored under one of keys.
func Lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Number coerces v the way a lenient numeric conversion would: numbers and
// numeric strings parse, booleans map to 1 and 0, anything else is zero.
func Number(v any) decimal.Decimal {
	switch n := v.(type) {
	case json.Number:
		return parseDecimal(string(n))
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(n)
	case float32:
		return Number(float64(n))
	case int:
		return decimal.NewFromInt(int64(n))
	case int64:
		return decimal.NewFromInt(n)
	case decimal.Decimal:
		return n
	case string:
		return parseDecimal(n)
	case bool:
		if n {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// IsNumeric reports whether v is a JSON number.
func IsNumeric(v any) bool {
	switch v.(type) {
	case json.Number, float64, float32, int, int64, decimal.Decimal:
		return true
	default:
		return false
	}
}

func parseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// number tries keys and coerces the first present value.
func number(obj map[string]any, keys []string) decimal.Decimal {
	v, _ := Lookup(obj, keys)
	return Number(v)
}

func integer(obj map[string]any, keys []string) int64 {
	return number(obj, keys).IntPart()
}

// text returns the first non-empty string form among keys.
func text(obj map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringOf(obj[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func boolean(obj map[string]any, keys []string) *bool {
	v, ok := Lookup(obj, keys)
	if !ok {
		return nil
	}
	switch b := v.(type) {
	case bool:
		return &b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return nil
		}
		return &parsed
	default:
		return nil
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// timestamp parses the first key holding a recognizable date.
func timestamp(obj map[string]any, keys []string) time.Time {
	for _, k := range keys {
		if t, ok := parseTime(stringOf(obj[k])); ok {
			return t
		}
	}
	return time.Time{}
}

func optionalTimestamp(obj map[string]any, keys []string) *time.Time {
	t := timestamp(obj, keys)
	if t.IsZero() {
		return nil
	}
	return &t
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// kind resolves tipo. Numbers use the wire code, strings the textual map.
func kind(obj map[string]any, keys []string) core.Kind {
	v, ok := Lookup(obj, keys)
	if !ok {
		return core.KindExpense
	}
	if IsNumeric(v) {
		n := Number(v)
		if !n.Equal(n.Truncate(0)) {
			return core.KindExpense
		}
		return core.KindFromCode(n.IntPart())
	}
	if s, ok := v.(string); ok {
		return core.ParseKind(s)
	}
	return core.KindExpense
}
