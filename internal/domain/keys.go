package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Key is the canonical form of an identifier used to join records across
// collections. Stored references drift between numbers and strings ("42",
// 42, 42.0); all of them normalize to the same Key.
type Key string

// String returns the key as a plain string.
func (k Key) String() string {
	return string(k)
}

// Int64 returns the numeric form of the key, if it has one.
func (k Key) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(k), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// NormalizeKey converts a raw identifier value into its canonical Key. The
// second return value is false when the value is absent (nil, empty or an
// unsupported type).
func NormalizeKey(v any) (Key, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case Key:
		return normalizeString(string(x))
	case string:
		return normalizeString(x)
	case int:
		return Key(strconv.FormatInt(int64(x), 10)), true
	case int32:
		return Key(strconv.FormatInt(int64(x), 10)), true
	case int64:
		return Key(strconv.FormatInt(x, 10)), true
	case uint32:
		return Key(strconv.FormatUint(uint64(x), 10)), true
	case uint64:
		return Key(strconv.FormatUint(x, 10)), true
	case float32:
		return normalizeFloat(float64(x))
	case float64:
		return normalizeFloat(x)
	case json.Number:
		return normalizeString(x.String())
	case fmt.Stringer:
		return normalizeString(x.String())
	default:
		return "", false
	}
}

// KeySet collects distinct keys while keeping first-seen order.
type KeySet struct {
	seen map[Key]struct{}
	keys []Key
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[Key]struct{})}
}

// Add inserts k unless it is empty or already present.
func (s *KeySet) Add(k Key) {
	if k == "" {
		return
	}
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.keys = append(s.keys, k)
}

// Keys returns the collected keys in insertion order.
func (s *KeySet) Keys() []Key {
	return s.keys
}

// Len returns the number of distinct keys.
func (s *KeySet) Len() int {
	return len(s.keys)
}

func normalizeString(s string) (Key, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Key(strconv.FormatInt(n, 10)), true
	}
	if isDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return normalizeFloat(f)
		}
	}
	return Key(s), true
}

func normalizeFloat(f float64) (Key, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return Key(strconv.FormatInt(int64(f), 10)), true
	}
	return Key(strconv.FormatFloat(f, 'f', -1, 64)), true
}

// isDecimal reports whether s is a plain decimal literal such as "42.0" or
// "-7.50". Exponents and hex forms are left alone so opaque ids that happen
// to look numeric to ParseFloat keep their identity.
func isDecimal(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	whole, frac, found := strings.Cut(s, ".")
	if whole == "" || !found || frac == "" {
		return false
	}
	return allDigits(whole) && allDigits(frac)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
