//go:build rp2040

package platform

import (
	"machine"
	"time"

	"picologger-go/services/status"
	"picologger-go/x/mathx"
	"picologger-go/x/timex"
)

// -----------------------------------------------------------------------------
// GPIO
// -----------------------------------------------------------------------------

// gpioRail switches the peripheral power rail.
type gpioRail struct {
	p  machine.Pin
	on bool
}

func newRail(n int) *gpioRail {
	r := &gpioRail{p: machine.Pin(n)}
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.on = r.p.Get()
	return r
}

func (r *gpioRail) Enabled() bool { return r.on }

func (r *gpioRail) Set(on bool) {
	r.p.Set(on)
	r.on = on
}

// inputPin configures n as a pulled-down input and returns its reader.
func inputPin(n int) func() bool {
	p := machine.Pin(n)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return p.Get
}

// floatPins returns pins to plain inputs so nothing back-powers the rail.
func floatPins(pins ...int) {
	for _, n := range pins {
		machine.Pin(n).Configure(machine.PinConfig{Mode: machine.PinInput})
	}
}

// -----------------------------------------------------------------------------
// PWM (status LED)
// -----------------------------------------------------------------------------

// Local interface to avoid depending on an unexported concrete type in machine.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Top() uint32
	Set(channel uint8, value uint32)
}

// Select controller handle for a given slice number (0..7).
func pwmGroupBySlice(slice uint8) pwmCtrl {
	switch slice {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

const (
	ledFreqHz = 1000
	ledTop    = 255
)

// pwmChannel is one LED colour on its slice, driven in 0..ledTop.
type pwmChannel struct {
	ctrl  pwmCtrl
	chIdx uint8 // 0 => A, 1 => B
	hwTop uint32
}

// configured slices; channels sharing one keep its period
var pwmSlices = map[uint8]bool{}

func newPWMChannel(n int) (*pwmChannel, error) {
	slice, err := machine.PWMPeripheral(machine.Pin(n))
	if err != nil {
		return nil, err
	}
	ctrl := pwmGroupBySlice(slice)
	if !pwmSlices[slice] {
		if err := ctrl.Configure(machine.PWMConfig{Period: timex.PeriodFromHz(ledFreqHz)}); err != nil {
			return nil, err
		}
		pwmSlices[slice] = true
	}
	machine.Pin(n).Configure(machine.PinConfig{Mode: machine.PinPWM})
	// even pin => A, odd pin => B
	return &pwmChannel{ctrl: ctrl, chIdx: uint8(n & 1), hwTop: ctrl.Top()}, nil
}

// Set scales a logical level in 0..ledTop onto the slice's hardware top.
func (p *pwmChannel) Set(level uint16) {
	level = mathx.Min(level, ledTop)
	p.ctrl.Set(p.chIdx, uint32(level)*p.hwTop/ledTop)
}

func newLED(r, g, b int, activeLow bool, pause func(time.Duration)) (*status.LED, error) {
	var ch [3]*pwmChannel
	for i, n := range []int{r, g, b} {
		c, err := newPWMChannel(n)
		if err != nil {
			return nil, err
		}
		ch[i] = c
	}
	return status.New(ch[0], ch[1], ch[2], ledTop, activeLow, pause), nil
}
