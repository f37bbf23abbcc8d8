package lifecycle

import (
	"log/slog"
	"time"

	"picologger-go/services/diag"
	"picologger-go/services/sensors"
	"picologger-go/services/status"
	"picologger-go/services/storage"
	"picologger-go/types"
)

// Rail is the switched peripheral power rail.
type Rail interface {
	Enabled() bool
	Set(on bool)
}

// Volume is the removable data volume (SD card).
type Volume interface {
	Mount() error
	Unmount() error
	FS() storage.FS
}

// RTC is the battery-backed real-time clock.
type RTC interface {
	Activate() error
	Valid() bool
	Sync(set func(time.Time)) (time.Time, error)
	Set(t time.Time) error
	Release() error
}

// Frontend is the optional external ADC and its bus.
type Frontend interface {
	sensors.Converter
	Activate() error
	Release() error
}

// Board is the MCU itself: clocks, ADC, one-wire bus, suspend and reset.
type Board interface {
	BootReason() types.BootReason
	// Now is the working wall clock; SetClock adjusts it.
	Now() time.Time
	SetClock(t time.Time)
	// Ticks is monotonic time since boot.
	Ticks() time.Duration
	Pause(d time.Duration)
	// Suspend does not return from SleepDeep on hardware.
	Suspend(mode types.SleepMode, d time.Duration)
	Reset()
	ADC(ch int) (sensors.Analog, error)
	// Probes is nil when the one-wire bus has no devices.
	Probes() sensors.Thermometers
}

// Indicator is the status LED.
type Indicator interface {
	On(c status.Color)
	Off()
	Flash(c status.Color)
	DualFlash(a, b status.Color)
}

// Deps are the collaborators of one boot. AFE may be nil.
type Deps struct {
	Config types.Config
	Board  Board
	Rail   Rail
	Volume Volume
	RTC    RTC
	AFE    Frontend
	// Cache is internal flash: schedule cache and config.
	Cache storage.FS
	Sink  *diag.Sink
	LED   Indicator
	Log   *slog.Logger
}
