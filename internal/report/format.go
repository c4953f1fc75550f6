// Package report renders estimation results for people: formatted values,
// report groups with descriptions, and the model's assumptions.
package report

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// NotApplicable marks values that do not exist for a result.
const NotApplicable = "N/A"

var durationScales = []struct {
	limit float64
	div   float64
	unit  string
}{
	{1e6, 1e3, "µs"},
	{1e9, 1e6, "ms"},
	{60e9, 1e9, "secs"},
	{3600e9, 60e9, "mins"},
	{86400e9, 3600e9, "hours"},
}

// Duration renders nanoseconds with the largest sensible unit.
func Duration(ns uint64) string {
	if ns < 1000 {
		return strconv.FormatUint(ns, 10) + " ns"
	}
	v := float64(ns)
	for _, s := range durationScales {
		if v < s.limit {
			return fmt.Sprintf("%.2f %s", v/s.div, s.unit)
		}
	}
	return fmt.Sprintf("%s days", humanize.CommafWithDigits(v/86400e9, 2))
}

// Count renders an integer with thousands separators.
func Count(n uint64) string {
	if n > math.MaxInt64 {
		return humanize.Comma(math.MaxInt64)
	}
	return humanize.Comma(int64(n))
}

// OptionalCount renders n, or N/A when absent.
func OptionalCount(n *uint64) string {
	if n == nil {
		return NotApplicable
	}
	return Count(*n)
}

// Frequency renders a rate in hertz with an SI prefix.
func Frequency(hz float64) string {
	return humanize.SIWithDigits(hz, 2, "Hz")
}

// SI renders a dimensionless quantity with an SI prefix.
func SI(v float64) string {
	return strings.TrimSpace(humanize.SIWithDigits(v, 2, ""))
}

// Rate renders a probability in scientific notation.
func Rate(p float64) string {
	return fmt.Sprintf("%.2e", p)
}

// OptionalRate renders p, or N/A when absent.
func OptionalRate(p *float64) string {
	if p == nil {
		return NotApplicable
	}
	return Rate(*p)
}

// Percent renders a fraction in [0, 1] as a percentage.
func Percent(fraction float64) string {
	return fmt.Sprintf("%.2f %%", fraction*100)
}

func join[T any](items []T, format func(T) string) string {
	if len(items) == 0 {
		return NotApplicable
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = format(it)
	}
	return strings.Join(parts, ", ")
}
