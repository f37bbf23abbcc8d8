//go:build rp2040

package strconvx

// Small replacements for the strconv calls the logger makes: cell and
// channel names, cache file integers and reading values.

func Itoa(i int) string { return FormatInt(int64(i), 10) }

// FormatInt supports bases 2..36; anything else formats in base 10.
func FormatInt(i int64, base int) string {
	if base < 2 || base > 36 {
		base = 10
	}
	neg := i < 0
	u := uint64(i)
	if neg {
		u = uint64(-i)
	}
	s := formatUint(u, base)
	if neg {
		return "-" + s
	}
	return s
}

func formatUint(u uint64, base int) string {
	if u == 0 {
		return "0"
	}
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	var buf [64]byte
	i := len(buf)
	b := uint64(base)
	for u > 0 {
		i--
		buf[i] = digits[u%b]
		u /= b
	}
	return string(buf[i:])
}

type parseError struct{}

func (parseError) Error() string { return "invalid syntax" }

// ParseInt parses an optionally signed integer in base 2..36 (0 means 10).
// bitSize is accepted for parity and the result is always range-checked
// against int64.
func ParseInt(s string, base, _ int) (int64, error) {
	if base == 0 {
		base = 10
	}
	neg := false
	if len(s) > 0 && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}
	if base < 2 || base > 36 || len(s) == 0 {
		return 0, parseError{}
	}
	const limit = uint64(1) << 63
	var v uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		var d byte
		switch {
		case '0' <= c && c <= '9':
			d = c - '0'
		case 'a' <= c && c <= 'z':
			d = c - 'a' + 10
		case 'A' <= c && c <= 'Z':
			d = c - 'A' + 10
		default:
			return 0, parseError{}
		}
		if int(d) >= base {
			return 0, parseError{}
		}
		if v > (limit-uint64(d))/uint64(base) {
			return 0, parseError{}
		}
		v = v*uint64(base) + uint64(d)
	}
	if neg {
		return -int64(v), nil
	}
	if v == limit {
		return 0, parseError{}
	}
	return int64(v), nil
}

// FormatFloat writes f in decimal. Exponent formats fall back to 'f', and
// infinities and NaN are not handled. prec < 0 gives up to six decimals with
// trailing zeros trimmed, close enough to strconv's shortest form for sensor
// values.
func FormatFloat(f float64, _ byte, prec, _ int) string {
	shortest := prec < 0
	if shortest {
		prec = 6
	}
	neg := false
	if f < 0 {
		neg = true
		f = -f
	}
	intp := uint64(f)
	frac := f - float64(intp)

	pow := 1.0
	for i := 0; i < prec; i++ {
		pow *= 10
	}
	fracN := uint64(frac*pow + 0.5) // simple rounding
	if fracN >= uint64(pow) {
		intp++
		fracN -= uint64(pow)
	}

	out := formatUint(intp, 10)
	if prec > 0 {
		fs := formatUint(fracN, 10)
		// zero-pad fractional
		if len(fs) < prec {
			z := make([]byte, prec-len(fs))
			for i := range z {
				z[i] = '0'
			}
			fs = string(z) + fs
		}
		out += "." + fs
		if shortest {
			n := len(out)
			for out[n-1] == '0' {
				n--
			}
			if out[n-1] == '.' {
				n--
			}
			out = out[:n]
		}
	}
	if neg && out != "0" {
		return "-" + out
	}
	return out
}
