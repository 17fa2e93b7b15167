package statsig

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// getHash maps a bucketing key to the first eight bytes of its SHA-256
// digest read big-endian. Bucket assignment is derived from this value, so
// the byte order must never change.
func getHash(key string) uint64 {
	sum := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint64(sum[:8])
}

// toNumber coerces a JSON-decoded value to a float64. The second return is
// false when the value has no numeric interpretation.
func toNumber(v interface{}) (float64, bool) {
	switch v := v.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// toString coerces a JSON-decoded value to its string form. Arrays,
// objects and nil coerce to the empty string.
func toString(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// toEpochSeconds coerces a JSON-decoded value to unix seconds. Values past
// the 32-bit range are assumed to be millisecond timestamps.
func toEpochSeconds(v interface{}) int64 {
	var sec int64
	switch v := v.(type) {
	case int:
		sec = int64(v)
	case int32:
		sec = int64(v)
	case int64:
		sec = v
	case float64:
		sec = int64(v)
	case string:
		sec, _ = strconv.ParseInt(v, 10, 64)
	}
	if sec > math.MaxInt32 {
		return sec / 1000
	}
	return sec
}

// asciiLower lowercases A-Z only. The any/none operators are specified as
// ASCII case folding, not locale-aware.
func asciiLower(s string) string {
	b := []byte(s)
	for i := 0; i < len(b); i++ {
		if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}

func compareNumbers(value, target interface{}, fn func(x, y float64) bool) bool {
	x, okX := toNumber(value)
	y, okY := toNumber(target)
	if !okX || !okY {
		return false
	}
	return fn(x, y)
}

// compareVersions parses both sides as dotted version strings, dropping any
// pre-release suffix ("1.2.3-beta" compares as "1.2.3"), and applies fn to
// the three-way comparison result.
func compareVersions(value, target interface{}, fn func(c int) bool) bool {
	v1, ok1 := value.(string)
	v2, ok2 := target.(string)
	if !ok1 || !ok2 {
		return false
	}
	v1 = strings.SplitN(v1, "-", 2)[0]
	v2 = strings.SplitN(v2, "-", 2)[0]
	if v1 == "" || v2 == "" {
		return false
	}
	return fn(versionCompare(v1, v2))
}

func versionCompare(a, b string) int {
	partsA := strings.Split(a, ".")
	partsB := strings.Split(b, ".")
	n := len(partsA)
	if len(partsB) > n {
		n = len(partsB)
	}
	for i := 0; i < n; i++ {
		numA := versionPart(partsA, i)
		numB := versionPart(partsB, i)
		if numA < numB {
			return -1
		}
		if numA > numB {
			return 1
		}
	}
	return 0
}

// versionPart returns the numeric value of a version component. Missing
// components zero-pad; non-numeric components parse to 0.
func versionPart(parts []string, i int) int64 {
	if i >= len(parts) {
		return 0
	}
	n, _ := strconv.ParseInt(parts[i], 10, 64)
	return n
}

// matchAny reports whether any element of target (a JSON array) matches
// value after string coercion. Non-array targets never match.
func matchAny(target, value interface{}, ignoreCase bool) bool {
	arr, ok := target.([]interface{})
	if !ok {
		return false
	}
	want := toString(value)
	if ignoreCase {
		want = asciiLower(want)
	}
	for _, el := range arr {
		got := toString(el)
		if ignoreCase {
			got = asciiLower(got)
		}
		if got == want {
			return true
		}
	}
	return false
}
