package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Statement amounts follow the continental convention: '.' groups
// digits, ',' separates decimals ("1.234,56"). Direction may come from
// a leading or trailing sign.
var amountCleaner = regexp.MustCompile(`[€$\s]|EUR`)

// ParseAmount normalizes a source-convention amount string into an
// exact decimal. A trailing '-' (some statement layouts print the sign
// after the figure) is treated the same as a leading one.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = amountCleaner.ReplaceAllString(s, "")

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	} else if strings.HasPrefix(s, "+") {
		s = s[1:]
	}
	if strings.HasSuffix(s, "-") {
		negative = true
		s = s[:len(s)-1]
	} else if strings.HasSuffix(s, "+") {
		s = s[:len(s)-1]
	}

	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string has no digits")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format %q: %w", s, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// FormatAmount renders a decimal back into the source convention with
// two decimal places: '.' thousands groups, ',' decimal separator.
// ParseAmount(FormatAmount(d)) returns d rounded to two places.
func FormatAmount(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)

	parts := strings.SplitN(s, ".", 2)
	intPart, fracPart := parts[0], parts[1]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ".") + "," + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

// The two date families seen across statements and transfer
// confirmations: numeric day-first dates with /, . or - separators,
// and spelled-out dates with Italian month names.
var (
	numericDatePattern = regexp.MustCompile(`\b(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{2,4})\b`)
	textualDatePattern = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(gennaio|febbraio|marzo|aprile|maggio|giugno|luglio|agosto|settembre|ottobre|novembre|dicembre)\s+(\d{4})\b`)
)

var italianMonths = map[string]time.Month{
	"gennaio": time.January, "febbraio": time.February, "marzo": time.March,
	"aprile": time.April, "maggio": time.May, "giugno": time.June,
	"luglio": time.July, "agosto": time.August, "settembre": time.September,
	"ottobre": time.October, "novembre": time.November, "dicembre": time.December,
}

// ParseDate parses a day-first date from either family
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	if m := numericDatePattern.FindStringSubmatch(s); m != nil {
		return buildNumericDate(m[1], m[2], m[3])
	}
	if m := textualDatePattern.FindStringSubmatch(s); m != nil {
		day := atoi(m[1])
		month := italianMonths[strings.ToLower(m[2])]
		year := atoi(m[3])
		return validDate(year, month, day)
	}
	return time.Time{}, fmt.Errorf("unparseable date: %q", s)
}

// FindDate scans free text for the first date of either family
func FindDate(text string) (time.Time, bool) {
	if m := numericDatePattern.FindStringSubmatch(text); m != nil {
		if t, err := buildNumericDate(m[1], m[2], m[3]); err == nil {
			return t, true
		}
	}
	if m := textualDatePattern.FindStringSubmatch(text); m != nil {
		day := atoi(m[1])
		month := italianMonths[strings.ToLower(m[2])]
		year := atoi(m[3])
		if t, err := validDate(year, month, day); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func buildNumericDate(dayStr, monthStr, yearStr string) (time.Time, error) {
	day := atoi(dayStr)
	month := atoi(monthStr)
	year := atoi(yearStr)
	if year < 100 {
		year += 2000
	}
	return validDate(year, time.Month(month), day)
}

func validDate(year int, month time.Month, day int) (time.Time, error) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date out of range: %d-%d-%d", year, month, day)
	}
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// Reject normalized overflow like 31/02.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("date out of range: %d-%d-%d", year, month, day)
	}
	return t, nil
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
