package types

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// Duration is a time.Duration that reads "15m" / "750ms" strings, ISO-8601
// durations ("PT15M") or a bare number of milliseconds from JSON, and writes
// the Go string form.
type Duration time.Duration

func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if strings.HasPrefix(s, "P") {
			iso, err := duration.Parse(s)
			if err != nil {
				return err
			}
			*d = Duration(iso.ToTimeDuration())
			return nil
		}
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*d = Duration(v)
		return nil
	}
	var ms float64
	if err := json.Unmarshal(b, &ms); err != nil {
		return errors.New("duration must be a string or milliseconds")
	}
	*d = Duration(time.Duration(ms * float64(time.Millisecond)))
	return nil
}
