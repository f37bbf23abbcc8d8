//go:build !rp2040

// Package strconvx mirrors the parts of strconv the logger needs. Host builds
// delegate to strconv; the rp2040 build has small formatters instead so the
// firmware image does not pull in strconv.
package strconvx

import "strconv"

func Itoa(i int) string                                   { return strconv.Itoa(i) }
func FormatInt(i int64, base int) string                  { return strconv.FormatInt(i, base) }
func ParseInt(s string, base, bitSize int) (int64, error) { return strconv.ParseInt(s, base, bitSize) }

func FormatFloat(f float64, fmt byte, prec, bitSize int) string {
	return strconv.FormatFloat(f, fmt, prec, bitSize)
}
