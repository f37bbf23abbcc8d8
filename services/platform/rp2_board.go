//go:build rp2040

package platform

import (
	"device/rp"
	"io"
	"log/slog"
	"machine"
	"runtime"
	"sync"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/tinyfs/littlefs"

	"picologger-go/errcode"
	"picologger-go/services/lifecycle"
	"picologger-go/services/sensors"
	"picologger-go/services/status"
	"picologger-go/services/storage"
	"picologger-go/types"
	"picologger-go/x/mathx"
)

// Compile-time conformance.
var (
	_ lifecycle.Board    = (*Pico)(nil)
	_ lifecycle.Rail     = (*gpioRail)(nil)
	_ lifecycle.Volume   = (*sdVolume)(nil)
	_ lifecycle.RTC      = (*rtcPort)(nil)
	_ lifecycle.Frontend = (*frontend)(nil)
)

const (
	// wakeMagic in watchdog scratch 0 marks a reset that ends a suspend.
	wakeMagic = 0x534c5031 // "SLP1"

	watchdogMillis = 8000
	// feedEvery keeps long pauses inside the watchdog window.
	feedEvery = 2 * time.Second
)

var bootReason = sync.OnceValue(func() types.BootReason {
	wake := rp.WATCHDOG.SCRATCH0.Get() == wakeMagic
	rp.WATCHDOG.SCRATCH0.Set(0)
	switch {
	case wake:
		return types.BootDeepSleepWake
	case rp.WATCHDOG.REASON.Get() == 0:
		return types.BootHardReset
	default:
		return types.BootOther
	}
})

// Pico is the RP2040 board for one boot.
type Pico struct {
	cfg  types.Config
	log  *slog.Logger
	boot time.Time

	rail *gpioRail
	fn   func() bool
	vol  *sdVolume
	rtc  *rtcPort
	afe  *frontend
	led  *status.LED
}

// Open configures pins and buses for cfg and starts the watchdog. Nothing
// on the rail is touched until the cycle powers it.
func Open(cfg types.Config, log *slog.Logger) (*Pico, error) {
	p := &Pico{cfg: cfg, log: log, boot: time.Now()}
	bootReason()

	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogMillis})
	if err := machine.Watchdog.Start(); err != nil {
		log.Warn("watchdog not started", "err", err)
	}

	hw := cfg.HW
	p.rail = newRail(hw.Switch.PWR)
	p.fn = inputPin(hw.Switch.FN)
	led, err := newLED(hw.LED.R, hw.LED.G, hw.LED.B, hw.LED.ActiveLow, p.Pause)
	if err != nil {
		return nil, errcode.Wrap(errcode.PeripheralUnavailable, "platform.led", err)
	}
	p.led = led
	p.vol = &sdVolume{cfg: hw.SDC}
	p.rtc = newRTCPort(hw.RTC, log)
	if hw.EADC != nil {
		p.afe = newFrontend(*hw.EADC)
	}
	machine.InitADC()
	return p, nil
}

func (p *Pico) BootReason() types.BootReason { return bootReason() }
func (p *Pico) Now() time.Time               { return time.Now().UTC() }
func (p *Pico) Ticks() time.Duration         { return time.Since(p.boot) }

// SetClock moves the runtime's wall clock; monotonic time is unaffected.
func (p *Pico) SetClock(t time.Time) {
	runtime.AdjustTimeOffset(int64(t.Sub(time.Now())))
}

// Pause sleeps in slices short enough to keep feeding the watchdog.
func (p *Pico) Pause(d time.Duration) {
	for d > 0 {
		step := mathx.Min(d, feedEvery)
		time.Sleep(step)
		machine.Watchdog.Update()
		d -= step
	}
}

// Suspend for SleepDeep waits out d, marks the wake and resets; it does not
// return. The rail is already off so the board draws MCU current only.
func (p *Pico) Suspend(mode types.SleepMode, d time.Duration) {
	p.Pause(d)
	if mode == types.SleepDeep {
		resetWith(wakeMagic)
	}
}

func (p *Pico) Reset() { Reboot() }

// Reboot restarts the board as a non-wake boot.
func Reboot() { resetWith(0) }

// resetWith leaves tag in watchdog scratch 0 and lets the watchdog fire, so
// REASON records a non-power-on reset.
func resetWith(tag uint32) {
	rp.WATCHDOG.SCRATCH0.Set(tag)
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	_ = machine.Watchdog.Start()
	for {
	}
}

type adcPin struct{ a machine.ADC }

func (a adcPin) Get() uint16 { return a.a.Get() }

// dieTemp replays machine.ReadTemperature as a raw reading so the internal
// temperature source sees the same scale as ADC 0..3.
type dieTemp struct{}

func (dieTemp) Get() uint16 {
	c := float64(machine.ReadTemperature()) / 1000
	v := 0.706 - (c-27)*0.001721
	return uint16(mathx.Clamp(v/sensors.VRef*65535, 0, 65535))
}

// ADC serves 0..2 (GP26..GP28), 3 (VSYS/3) and 4 (die temperature).
func (p *Pico) ADC(ch int) (sensors.Analog, error) {
	pins := [...]machine.Pin{machine.ADC0, machine.ADC1, machine.ADC2, machine.ADC3}
	switch {
	case ch >= 0 && ch < len(pins):
		a := machine.ADC{Pin: pins[ch]}
		a.Configure(machine.ADCConfig{})
		return adcPin{a: a}, nil
	case ch == sensors.ADCTemp:
		return dieTemp{}, nil
	}
	return nil, errcode.New(errcode.InvalidConfig, "platform.adc", "no adc channel")
}

func (p *Pico) Probes() sensors.Thermometers {
	if pr := searchProbes(p.cfg.SEN.OW.Pin); pr != nil {
		return pr
	}
	return nil
}

// Accessors for wiring.
func (p *Pico) Rail() lifecycle.Rail     { return p.rail }
func (p *Pico) Volume() lifecycle.Volume { return p.vol }
func (p *Pico) RTC() lifecycle.RTC       { return p.rtc }
func (p *Pico) LED() *status.LED         { return p.led }
func (p *Pico) Enabled() bool            { return p.fn() }

// AFE is nil when no external ADC is configured.
func (p *Pico) AFE() lifecycle.Frontend {
	if p.afe == nil {
		return nil
	}
	return p.afe
}

// MountCache mounts littlefs on the flash region after the program image,
// formatting it on first use.
func MountCache(log *slog.Logger) (storage.FS, error) {
	lfs := littlefs.New(machine.Flash)
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 512,
		BlockCycles:   100,
	})
	if err := lfs.Mount(); err != nil {
		if log != nil {
			log.Warn("flash filesystem unmountable, formatting", "err", err)
		}
		if err := lfs.Format(); err != nil {
			return nil, errcode.Wrap(errcode.StorageUnavailable, "platform.cache", err)
		}
		if err := lfs.Mount(); err != nil {
			return nil, errcode.Wrap(errcode.StorageUnavailable, "platform.cache", err)
		}
	}
	return storage.TinyFS{FS: lfs}, nil
}

// Console opens the diagnostic UART. Nil config means no mirror.
func Console(cfg *types.UARTConfig) io.Writer {
	if cfg == nil {
		return nil
	}
	hw := uartx.UART0
	if cfg.ID == 1 {
		hw = uartx.UART1
	}
	// Defaults inside uartx apply if zero.
	if err := hw.Configure(uartx.UARTConfig{
		BaudRate: cfg.Baud,
		TX:       machine.Pin(cfg.TX),
		RX:       machine.Pin(cfg.RX),
	}); err != nil {
		return nil
	}
	return hw
}
