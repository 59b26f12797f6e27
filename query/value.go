package query

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Collator orders strings by locale. It is safe for concurrent use.
type Collator struct {
	mu       sync.Mutex
	collator *collate.Collator
	buf      collate.Buffer
	locale   string
}

// NewCollator creates a collator for a BCP 47 locale, falling back to English
func NewCollator(locale string) *Collator {
	tag := language.Make(locale)
	if tag == language.Und {
		tag = language.English
	}
	return &Collator{
		collator: collate.New(tag),
		locale:   tag.String(),
	}
}

// Locale returns the locale the collator was built for
func (c *Collator) Locale() string {
	return c.locale
}

// Compare compares two strings by collation order
func (c *Collator) Compare(a, b string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collator.CompareString(a, b)
}

// Key returns a sort key such that equal keys collate equal
func (c *Collator) Key(s string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
	return string(c.collator.KeyFromString(&c.buf, s))
}

// CompareValues orders two values: dates by time, values that both coerce
// to finite numbers numerically, everything else by string collation.
func (c *Collator) CompareValues(a, b interface{}) int {
	a, b = normalizeValue(a), normalizeValue(b)

	if ta, ok := a.(time.Time); ok {
		if tb, ok := asTime(b); ok {
			return compareTimes(ta, tb)
		}
	}
	if tb, ok := b.(time.Time); ok {
		if ta, ok := asTime(a); ok {
			return compareTimes(ta, tb)
		}
	}

	if na, ok := toNumber(a); ok && !math.IsNaN(na) && !math.IsInf(na, 0) {
		if nb, ok := toNumber(b); ok && !math.IsNaN(nb) && !math.IsInf(nb, 0) {
			switch {
			case na < nb:
				return -1
			case na > nb:
				return 1
			}
			return 0
		}
	}

	return c.Compare(toString(a), toString(b))
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

// isStrictNull reports a missing value: nil, NaN or an invalid (zero) time
func isStrictNull(v interface{}) bool {
	switch val := normalizeValue(v).(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(val)
	case time.Time:
		return val.IsZero()
	}
	return false
}

// isNullish is the IS NULL test: a strict null or the empty string
func isNullish(v interface{}) bool {
	if s, ok := v.(string); ok {
		return s == ""
	}
	return isStrictNull(v)
}

// normalizeValue converts provider values to the engine's value set:
// nil, bool, float64, string, time.Time, []interface{} and map[string]interface{}
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil, bool, float64, string, time.Time, []interface{}, map[string]interface{}:
		return v
	case int:
		return float64(val)
	case int8:
		return float64(val)
	case int16:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case uint:
		return float64(val)
	case uint8:
		return float64(val)
	case uint16:
		return float64(val)
	case uint32:
		return float64(val)
	case uint64:
		return float64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return normalizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if items, ok := asSlice(v); ok {
			return items
		}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]interface{}, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = iter.Value().Interface()
			}
			return out
		}
	}
	return v
}

// asSlice returns the elements of any slice or array value
func asSlice(v interface{}) ([]interface{}, bool) {
	switch val := v.(type) {
	case []interface{}:
		return val, true
	case []map[string]interface{}:
		out := make([]interface{}, len(val))
		for i, m := range val {
			out[i] = m
		}
		return out, true
	case []byte, string, nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toNumber coerces a value to a number. Booleans are 1 and 0, dates are
// epoch milliseconds and strings are parsed after trimming.
func toNumber(v interface{}) (float64, bool) {
	switch val := normalizeValue(v).(type) {
	case float64:
		return val, true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return 0, true
		}
		if f, err := parseNumberLiteral(s); err == nil {
			return f, true
		}
	case time.Time:
		if !val.IsZero() {
			return float64(val.UnixMilli()), true
		}
	}
	return math.NaN(), false
}

// toString renders a value as text for concatenation and casts
func toString(v interface{}) string {
	switch val := normalizeValue(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatNumber(val)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return formatTime(val)
	case []interface{}, map[string]interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339Nano)
}

// truthy is the boolean reading of a value used by filters and logic operators
func truthy(v interface{}) bool {
	switch val := normalizeValue(v).(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case string:
		return val != ""
	case time.Time:
		return !val.IsZero()
	}
	return true
}

// equalValues is the = operator: both sides present and of the same kind.
// Dates compare by instant and also match strings that parse as dates.
func equalValues(a, b interface{}) bool {
	a, b = normalizeValue(a), normalizeValue(b)
	if isStrictNull(a) || isStrictNull(b) {
		return false
	}
	switch va := a.(type) {
	case float64:
		vb, ok := b.(float64)
		return ok && va == vb
	case string:
		if tb, ok := b.(time.Time); ok {
			ta, ok := parseDateString(va)
			return ok && ta.Equal(tb)
		}
		vb, ok := b.(string)
		return ok && va == vb
	case bool:
		vb, ok := b.(bool)
		return ok && va == vb
	case time.Time:
		tb, ok := asTime(b)
		return ok && va.Equal(tb)
	}
	return valueKey(a) == valueKey(b)
}

// asTime reads a time from a time value or a date string
func asTime(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		return parseDateString(val)
	}
	return time.Time{}, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// parseDateString parses the ISO-like date forms the engine promotes to dates
func parseDateString(s string) (time.Time, bool) {
	if !datePrefix.MatchString(s) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// valueKey renders a value as a normalized key: equal keys mean equal values
// for grouping, DISTINCT and set operations
func valueKey(v interface{}) string {
	switch val := normalizeValue(v).(type) {
	case nil:
		return "n"
	case float64:
		if math.IsNaN(val) {
			return "n"
		}
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64)
	case string:
		return "s:" + val
	case bool:
		return "b:" + strconv.FormatBool(val)
	case time.Time:
		if val.IsZero() {
			return "n"
		}
		return "t:" + strconv.FormatInt(val.UnixNano(), 10)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "x:" + fmt.Sprint(val)
		}
		return "j:" + string(b)
	}
}

// tupleKey is valueKey over an ordered tuple
func tupleKey(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = valueKey(v)
	}
	return strings.Join(parts, "\x00")
}

// isScalar reports whether v can cross the result boundary
func isScalar(v interface{}) bool {
	switch v.(type) {
	case nil, bool, float64, string, time.Time:
		return true
	}
	return false
}

// outputValue converts a value for the result boundary: non-scalar values
// and missing numbers become nil
func outputValue(v interface{}) interface{} {
	v = normalizeValue(v)
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	if t, ok := v.(time.Time); ok && t.IsZero() {
		return nil
	}
	if !isScalar(v) {
		return nil
	}
	return v
}
