// Package format converts between the human-readable sizes the cat APIs
// return and byte counts, and formats numbers for rendered responses.
package format

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	kb = 1024
	mb = kb * 1024
	gb = mb * 1024
	tb = gb * 1024
)

// GB is one gibibyte in bytes
const GB = gb

var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]*\.?[0-9]+)\s*(b|kb|mb|gb|tb)?\s*$`)

var unitMultiplier = map[string]float64{
	"":   1,
	"b":  1,
	"kb": kb,
	"mb": mb,
	"gb": gb,
	"tb": tb,
}

// ParseSizeToBytes parses a cat API size such as "12.5gb" or "512b" into
// bytes using powers of 1024. Empty or unparsable input yields 0; it never
// fails. A bare number is taken as bytes.
func ParseSizeToBytes(s string) uint64 {
	m := sizePattern.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil || value < 0 {
		return 0
	}
	return uint64(math.Round(value * unitMultiplier[strings.ToLower(m[2])]))
}

// Bytes formats a byte count as "X.XX UNIT", picking the largest unit whose
// mantissa, after rounding to two decimals, is at least 1.
func Bytes(n uint64) string {
	value := float64(n)
	unit := 0
	for unit < len(byteUnits)-1 && math.Round(value*100)/100 >= kb {
		value /= kb
		unit++
	}
	return fmt.Sprintf("%.2f %s", value, byteUnits[unit])
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// ToGB converts bytes to gibibytes
func ToGB(n uint64) float64 {
	return float64(n) / gb
}

// Number formats an unsigned count with comma separators.
// Example: 12345678 → "12,345,678".
func Number(n uint64) string {
	return insertCommas(strconv.FormatUint(n, 10))
}

// Percent formats a percentage with one decimal place.
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// insertCommas inserts comma separators into a digit string every 3 digits from the right.
func insertCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var buf strings.Builder
	lead := n % 3
	if lead > 0 {
		buf.WriteString(s[:lead])
	}
	for i := lead; i < n; i += 3 {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(s[i : i+3])
	}
	return buf.String()
}
