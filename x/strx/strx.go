// Package strx holds string helpers for small cache and config files.
package strx

import "strings"

// Coalesce returns s if non-empty, otherwise d.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// FirstLine returns the first line of b with surrounding space removed.
// Cache files are written with a trailing newline; older ones may lack it.
func FirstLine(b []byte) string {
	s := string(b)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
