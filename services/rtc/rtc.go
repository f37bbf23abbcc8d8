// Package rtc wraps the DS3231 real-time clock that carries wall time across
// deep sleep and power loss.
package rtc

import (
	"log/slog"
	"time"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/ds3231"

	"picologger-go/errcode"
)

// RTC owns the DS3231 for one cycle.
type RTC struct {
	dev     ds3231.Device
	release func() error
	log     *slog.Logger
	active  bool
}

// New binds a DS3231 on bus. release, if non-nil, hands the bus back to the
// board (pins to inputs) when the cycle ends.
func New(bus drivers.I2C, release func() error, log *slog.Logger) *RTC {
	return &RTC{dev: ds3231.New(bus), release: release, log: log}
}

// Activate checks the chip answers and restarts a halted oscillator. A time
// lost to a dead backup cell shows up through Valid.
func (r *RTC) Activate() error {
	const op = "rtc.activate"
	r.dev.Configure()
	if _, err := r.dev.ReadTime(); err != nil {
		return errcode.Wrap(errcode.PeripheralUnavailable, op, err)
	}
	r.active = true
	if !r.dev.IsRunning() {
		r.log.Warn("rtc oscillator halted, restarting")
		if err := r.dev.SetRunning(true); err != nil {
			return errcode.Wrap(errcode.PeripheralUnavailable, op, err)
		}
	}
	return nil
}

// Valid reports whether the stored time survived since it was last set.
func (r *RTC) Valid() bool { return r.dev.IsTimeValid() }

func (r *RTC) Now() (time.Time, error) {
	t, err := r.dev.ReadTime()
	if err != nil {
		return time.Time{}, errcode.Wrap(errcode.PeripheralUnavailable, "rtc.now", err)
	}
	return t, nil
}

// Sync reads the RTC and hands the time to set, which adjusts the working
// clock. Returns the time applied.
func (r *RTC) Sync(set func(time.Time)) (time.Time, error) {
	t, err := r.Now()
	if err != nil {
		return t, err
	}
	set(t)
	r.log.Debug("working clock synced", "rtc", t.Format(time.DateTime))
	return t, nil
}

// Set writes t to the chip and clears the oscillator-stop flag.
func (r *RTC) Set(t time.Time) error {
	if err := r.dev.SetTime(t.UTC()); err != nil {
		return errcode.Wrap(errcode.PeripheralUnavailable, "rtc.set", err)
	}
	return nil
}

// Release gives the bus back. Safe to call when not active.
func (r *RTC) Release() error {
	if !r.active {
		return nil
	}
	r.active = false
	if r.release == nil {
		return nil
	}
	if err := r.release(); err != nil {
		return errcode.Wrap(errcode.PeripheralUnavailable, "rtc.release", err)
	}
	return nil
}
