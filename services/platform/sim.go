//go:build !rp2040

package platform

import (
	"errors"
	"time"

	"picologger-go/services/lifecycle"
	"picologger-go/services/sensors"
	"picologger-go/services/status"
	"picologger-go/services/storage"
	"picologger-go/types"
)

// Compile-time conformance.
var (
	_ lifecycle.Board    = (*SimBoard)(nil)
	_ lifecycle.Rail     = (*simRail)(nil)
	_ lifecycle.Volume   = (*simVolume)(nil)
	_ lifecycle.RTC      = (*simRTC)(nil)
	_ lifecycle.Frontend = (*simAFE)(nil)
)

// PowerOnClock is what the working clock reads before it is synced, as on
// a freshly reset RP2040.
var PowerOnClock = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

const simTop = 255

var errNotPowered = errors.New("sim: peripheral rail off")

// SimConfig describes the simulated board.
type SimConfig struct {
	// Start is true wall time at first power-up.
	Start time.Time
	// Probes is the number of DS18B20s on the one-wire bus.
	Probes int
	// NoAFE leaves the external ADC unfitted.
	NoAFE bool
	// Disabled holds the "logging enabled" switch off.
	Disabled bool
	// RTCLost starts with an RTC whose backup cell died.
	RTCLost bool
}

// SimFaults are injected per boot by tests and the simulator CLI.
type SimFaults struct {
	Mount   error
	RTC     error
	AFEDead bool
}

// Sim is the physical board: wall time, flash, card and RTC survive boots;
// everything on a SimBoard is volatile.
type Sim struct {
	cfg   SimConfig
	cache storage.FS
	card  storage.FS

	wall     time.Time
	next     types.BootReason
	rtcSkew  time.Duration
	rtcValid bool

	Faults SimFaults
	Boots  int
	Resets int
}

// NewSim builds a board over cache (internal flash) and card (SD).
func NewSim(cache, card storage.FS, cfg SimConfig) *Sim {
	if cfg.Start.IsZero() {
		cfg.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Sim{
		cfg:      cfg,
		cache:    cache,
		card:     card,
		wall:     cfg.Start,
		next:     types.BootHardReset,
		rtcValid: !cfg.RTCLost,
	}
}

func (s *Sim) Cache() storage.FS { return s.cache }

// Wall is true time.
func (s *Sim) Wall() time.Time { return s.wall }

// Advance passes time with the board powered down or idle.
func (s *Sim) Advance(d time.Duration) { s.wall = s.wall.Add(d) }

// PowerCycle makes the next boot a hard reset.
func (s *Sim) PowerCycle() { s.next = types.BootHardReset }

// Boot powers the MCU up. The returned board lives for one boot.
func (s *Sim) Boot() *SimBoard {
	s.Boots++
	b := &SimBoard{s: s, reason: s.next, clock: PowerOnClock}
	s.next = types.BootOther
	b.rail = &simRail{b: b}
	b.vol = &simVolume{b: b}
	b.rtc = &simRTC{b: b}
	if !s.cfg.NoAFE {
		b.afe = &simAFE{b: b}
	}
	rgb := &simRGB{b: b}
	b.led = status.New(rgb.ch(0), rgb.ch(1), rgb.ch(2), simTop, false, b.Pause)
	return b
}

// SimBoard is one boot of the simulated MCU.
type SimBoard struct {
	s      *Sim
	reason types.BootReason
	clock  time.Time
	ticks  time.Duration

	rail *simRail
	vol  *simVolume
	rtc  *simRTC
	afe  *simAFE
	led  *status.LED

	// Slept is the last suspend; Mode its kind.
	Slept     time.Duration
	Mode      types.SleepMode
	Suspended bool
	// LEDLog is every colour shown, by palette name.
	LEDLog []string
}

func (b *SimBoard) BootReason() types.BootReason { return b.reason }
func (b *SimBoard) Now() time.Time               { return b.clock }
func (b *SimBoard) SetClock(t time.Time)         { b.clock = t }
func (b *SimBoard) Ticks() time.Duration         { return b.ticks }

func (b *SimBoard) Pause(d time.Duration) {
	b.clock = b.clock.Add(d)
	b.ticks += d
	b.s.wall = b.s.wall.Add(d)
}

// Suspend passes d. A deep suspend ends in a wake boot.
func (b *SimBoard) Suspend(mode types.SleepMode, d time.Duration) {
	b.Slept, b.Mode, b.Suspended = d, mode, true
	if mode == types.SleepLight {
		b.Pause(d)
		return
	}
	b.s.wall = b.s.wall.Add(d)
	b.s.next = types.BootDeepSleepWake
}

func (b *SimBoard) Reset() {
	b.s.Resets++
	b.s.next = types.BootOther
}

func (b *SimBoard) minute() int { return b.s.wall.Hour()*60 + b.s.wall.Minute() }

// ADC serves the RP2040 inputs: 0..2 soil, 3 VSYS/3, 4 die temperature.
func (b *SimBoard) ADC(ch int) (sensors.Analog, error) {
	switch {
	case ch >= 0 && ch <= 2:
		return simAnalog(func() uint16 { return uint16(30000 + 500*ch + b.minute()%60) }), nil
	case ch == sensors.ADCVSYS:
		return simAnalog(func() uint16 { return 26479 }), nil // 4.0 V
	case ch == sensors.ADCTemp:
		return simAnalog(func() uint16 { return 14020 }), nil // 27 °C
	}
	return nil, errors.New("sim: no adc channel")
}

func (b *SimBoard) Probes() sensors.Thermometers {
	if b.s.cfg.Probes == 0 || !b.rail.on {
		return nil
	}
	return simProbes{b: b, n: b.s.cfg.Probes}
}

// Accessors for wiring.
func (b *SimBoard) Rail() lifecycle.Rail     { return b.rail }
func (b *SimBoard) Volume() lifecycle.Volume { return b.vol }
func (b *SimBoard) RTC() lifecycle.RTC       { return b.rtc }
func (b *SimBoard) LED() *status.LED         { return b.led }
func (b *SimBoard) Enabled() bool            { return !b.s.cfg.Disabled }

// AFE is nil when no external ADC is fitted.
func (b *SimBoard) AFE() lifecycle.Frontend {
	if b.afe == nil {
		return nil
	}
	return b.afe
}

// ---- peripherals ----

type simAnalog func() uint16

func (a simAnalog) Get() uint16 { return a() }

type simRail struct {
	b  *SimBoard
	on bool
}

func (r *simRail) Enabled() bool { return r.on }
func (r *simRail) Set(on bool)   { r.on = on }

type simVolume struct {
	b *SimBoard
	m storage.Mount
}

func (v *simVolume) Mount() error {
	if !v.b.rail.on {
		return errNotPowered
	}
	if err := v.b.s.Faults.Mount; err != nil {
		return err
	}
	if err := v.b.s.card.MkdirAll("/sd"); err != nil {
		return err
	}
	v.m.Attach(v.b.s.card)
	return nil
}

func (v *simVolume) Unmount() error { v.m.Detach(); return nil }
func (v *simVolume) FS() storage.FS { return &v.m }

type simRTC struct{ b *SimBoard }

func (r *simRTC) Activate() error {
	if !r.b.rail.on {
		return errNotPowered
	}
	return r.b.s.Faults.RTC
}

func (r *simRTC) Valid() bool { return r.b.s.rtcValid }

func (r *simRTC) Sync(set func(time.Time)) (time.Time, error) {
	t := r.b.s.wall.Add(r.b.s.rtcSkew).Truncate(time.Second)
	set(t)
	return t, nil
}

func (r *simRTC) Set(t time.Time) error {
	r.b.s.rtcSkew = t.Sub(r.b.s.wall)
	r.b.s.rtcValid = true
	return nil
}

func (r *simRTC) Release() error { return nil }

type simAFE struct {
	b  *SimBoard
	up bool
}

func (a *simAFE) Activate() error {
	if !a.b.rail.on {
		return errNotPowered
	}
	a.up = true
	return nil
}

func (a *simAFE) Release() error { a.up = false; return nil }

func (a *simAFE) ok(ch int) error {
	switch {
	case !a.up || a.b.s.Faults.AFEDead:
		return errors.New("sim: ads1115 nack")
	case ch < 0 || ch > 3:
		return errors.New("sim: ads1115 channel")
	}
	return nil
}

func (a *simAFE) ReadRaw(ch int) (int16, error) {
	if err := a.ok(ch); err != nil {
		return 0, err
	}
	return int16(12000 + 1000*ch + a.b.minute()%60), nil
}

// ReadVolts reads 0.36 V on channel 0: a 4.0 V cell behind 220k/22k.
func (a *simAFE) ReadVolts(ch int) (float64, error) {
	if err := a.ok(ch); err != nil {
		return 0, err
	}
	if ch == 0 {
		return 0.36, nil
	}
	return float64(12000+1000*ch) * 2.048 / 32768, nil
}

type simProbes struct {
	b *SimBoard
	n int
}

func (p simProbes) Count() int { return p.n }

func (p simProbes) Convert() error {
	if !p.b.rail.on {
		return errNotPowered
	}
	return nil
}

func (p simProbes) ReadMilliC(i int) (int32, error) {
	return int32(18000 + 250*i + 10*(p.b.minute()%60)), nil
}

// simRGB collects the three channel levels; the blue write completes a colour.
type simRGB struct {
	b   *SimBoard
	lvl [3]uint16
}

type simChannel struct {
	rgb *simRGB
	i   int
}

func (r *simRGB) ch(i int) simChannel { return simChannel{rgb: r, i: i} }

func (c simChannel) Set(level uint16) {
	c.rgb.lvl[c.i] = level
	if c.i != 2 {
		return
	}
	col := status.Color{
		R: float64(c.rgb.lvl[0]) / simTop,
		G: float64(c.rgb.lvl[1]) / simTop,
		B: float64(c.rgb.lvl[2]) / simTop,
	}
	c.rgb.b.LEDLog = append(c.rgb.b.LEDLog, status.Name(col))
}
