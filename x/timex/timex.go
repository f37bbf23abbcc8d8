package timex

import (
	"strings"
	"time"

	"github.com/relvacode/iso8601"
)

// Layout is the on-disk timestamp form: ISO-8601 local time, no zone.
const Layout = "2006-01-02T15:04:05"

// PeriodFromHz returns a nanosecond period for a requested frequency.
// freqHz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(freqHz uint32) uint64 {
	if freqHz == 0 {
		freqHz = 1
	}
	return uint64(1_000_000_000 / uint64(freqHz))
}

// NextSlot returns the smallest epoch + k*interval strictly after now.
// interval <= 0 yields now.
func NextSlot(now, epoch time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return now
	}
	d := now.Sub(epoch)
	k := d / interval
	if d%interval < 0 {
		k-- // floor for instants before epoch
	}
	return epoch.Add((k + 1) * interval)
}

// Format renders t in Layout. The board has no zone database; wall time is
// kept in UTC and treated as local.
func Format(t time.Time) string { return t.UTC().Format(Layout) }

// Parse is the inverse of Format. Surrounding whitespace is ignored. Other
// ISO-8601 forms (fractional seconds, a zone suffix) are accepted and moved
// to UTC.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(Layout, s); err == nil {
		return t, nil
	}
	t, err := iso8601.ParseString(s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
