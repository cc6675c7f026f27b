package validation

import (
	"net/mail"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	rollPattern  = regexp.MustCompile(`^\d{1,5}-\d{1,5}$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s()-]+$`)
)

var dateLayouts = []string{time.DateOnly, "02-01-2006", "02/01/2006"}

// parseDate accepts ISO and the day-first layouts people type in Chile.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount reads a CLP amount, ignoring "$", thousands dots and spaces.
// Decimal commas are not accepted since CLP has no minor unit.
func parseAmount(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, ",") || strings.HasPrefix(s, "-") {
		return 0, false
	}
	digits := stripNonDigits(s)
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// parseBool reads yes/no answers from radios, checkboxes and case files.
// ok is false when the question was left unanswered.
func parseBool(s string) (v, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "si", "sí", "true", "1", "on", "yes":
		return true, true
	case "no", "false", "0", "off":
		return false, true
	}
	return false, false
}

func stripNonDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// collapse trims and squeezes internal whitespace.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@"):], ".")
}

func validPhone(s string) bool {
	if !phonePattern.MatchString(s) {
		return false
	}
	n := len(stripNonDigits(s))
	return n >= 8 && n <= 12
}
