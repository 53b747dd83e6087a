package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"staffplan/internal/core"
)

// Money formats whole currency units with a space between thousands,
// e.g. -1 234 567.
func Money(m core.Money) string {
	return groupThousands(int64(m))
}

// Amount formats like Money and shows two decimals when a has a fraction,
// e.g. 1 000.60.
func Amount(a core.Amount) string {
	d := a.Decimal().Round(2)
	whole := d.Truncate(0)
	out := groupThousands(whole.IntPart())
	frac := d.Sub(whole).Abs()
	if frac.IsZero() {
		return out
	}
	if whole.IsZero() && d.IsNegative() {
		out = "-" + out
	}
	return out + strings.TrimPrefix(frac.StringFixed(2), "0")
}

// Hours formats an hour count with the "h" suffix.
func Hours(h int) string {
	return groupThousands(int64(h)) + "h"
}

// Percent formats a ratio given in percent with one decimal.
func Percent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

func groupThousands(v int64) string {
	s := strconv.FormatInt(v, 10)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	if len(s) <= 3 {
		return sign + s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return sign + b.String()
}
