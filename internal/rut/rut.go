// Package rut validates and formats Chilean RUT numbers (Rol Único Tributario).
//
// A RUT is a body of up to eight digits followed by a check digit computed
// modulo 11 with weights 2..7 cycling from the rightmost body digit. The
// check digit is '0'..'9' or 'K'.
package rut

import (
	"strings"
)

// Clean strips dots, dashes and anything that is not a digit or K, and
// upper-cases the result. "12.345.678-k" becomes "12345678K".
func Clean(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'k' || r == 'K':
			b.WriteRune('K')
		}
	}
	return b.String()
}

// CheckDigit computes the verification character for a numeric body.
// It returns 0 when body contains a non-digit.
func CheckDigit(body string) byte {
	sum, weight := 0, 2
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return 0
		}
		sum += int(c-'0') * weight
		weight++
		if weight > 7 {
			weight = 2
		}
	}
	switch dv := 11 - sum%11; dv {
	case 11:
		return '0'
	case 10:
		return 'K'
	default:
		return byte('0' + dv)
	}
}

// Split returns the numeric body and check digit of a cleaned RUT.
func Split(s string) (body string, dv byte, ok bool) {
	c := Clean(s)
	if len(c) < 8 || len(c) > 9 {
		return "", 0, false
	}
	body, dv = c[:len(c)-1], c[len(c)-1]
	if strings.ContainsRune(body, 'K') {
		return "", 0, false
	}
	return body, dv, true
}

// Valid reports whether s is a well-formed RUT with a matching check digit.
// Comparison is case-insensitive.
func Valid(s string) bool {
	body, dv, ok := Split(s)
	if !ok {
		return false
	}
	return CheckDigit(body) == dv
}

// Format renders s as "12.345.678-5". Input that cannot be split is returned
// unchanged.
func Format(s string) string {
	body, dv, ok := Split(s)
	if !ok {
		return s
	}
	var b strings.Builder
	lead := len(body) % 3
	if lead > 0 {
		b.WriteString(body[:lead])
	}
	for i := lead; i < len(body); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(body[i : i+3])
	}
	b.WriteByte('-')
	b.WriteByte(dv)
	return b.String()
}
