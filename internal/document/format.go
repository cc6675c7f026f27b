package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Money formats CLP the es-CL way: $1.234.567, no decimals.
func Money(n int64) string {
	if n < 0 {
		return "-$" + humanize.FormatInteger("#.###,", int(-n))
	}
	return "$" + humanize.FormatInteger("#.###,", int(n))
}

// Number formats an integer with es-CL thousands separators.
func Number(n int64) string { return humanize.FormatInteger("#.###,", int(n)) }

// Percent formats with one decimal and a decimal comma: 5,9.
func Percent(p float64) string { return humanize.FormatFloat("#.###,#", p) }

var months = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// LongDate renders "21 de enero de 2026".
func LongDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), months[t.Month()-1], t.Year())
}

// ShortDate renders "21-01-2026".
func ShortDate(t time.Time) string { return t.Format("02-01-2006") }

// joinY joins with commas and a final "y".
func joinY(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " y " + items[len(items)-1]
}

// courtCity strips the "Corte de Apelaciones de" prefix for the tribunal line.
func courtCity(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, "Corte de Apelaciones de"))
}
