// Package ads1115 provides a single-shot driver for the ADS1115 16-bit
// analog-to-digital converter.
//
//	adc := ads1115.New(bus)
//	_ = adc.Configure(ads1115.Config{Gain: ads1115.Gain4V096})
//	v, err := adc.ReadVolts(0)
//
// Each read programs the config register with the channel mux and the
// single-shot bit, waits one conversion period and polls until the device
// reports idle.
package ads1115

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"
)

// Default I2C address (ADDR tied to GND).
const Address = 0x48

// Registers.
const (
	regConversion = 0x00
	regConfig     = 0x01
)

// Config register bits.
const (
	osSingle   = 0x8000 // write: start a conversion; read: 1 when idle
	muxSingle0 = 0x4000 // AINx vs GND, x in 0..3 at 0x1000 steps
	modeSingle = 0x0100
	compQueOff = 0x0003
)

// Gain selects the programmable amplifier full-scale range. The zero value
// leaves the current setting alone.
type Gain uint8

const (
	Gain6V144 Gain = iota + 1
	Gain4V096
	Gain2V048
	Gain1V024
	Gain0V512
	Gain0V256
)

// bits is the PGA field of the config register.
func (g Gain) bits() uint16 {
	switch g {
	case Gain6V144:
		return 0x0000
	case Gain4V096:
		return 0x0200
	case Gain1V024:
		return 0x0600
	case Gain0V512:
		return 0x0800
	case Gain0V256:
		return 0x0A00
	default:
		return 0x0400
	}
}

// FullScale returns the range in volts for g.
func (g Gain) FullScale() float64 {
	switch g {
	case Gain6V144:
		return 6.144
	case Gain4V096:
		return 4.096
	case Gain1V024:
		return 1.024
	case Gain0V512:
		return 0.512
	case Gain0V256:
		return 0.256
	default:
		return 2.048
	}
}

// GainFor returns the narrowest gain covering volts.
func GainFor(volts float64) Gain {
	switch {
	case volts > 4.096:
		return Gain6V144
	case volts > 2.048:
		return Gain4V096
	case volts > 1.024:
		return Gain2V048
	case volts > 0.512:
		return Gain1V024
	case volts > 0.256:
		return Gain0V512
	default:
		return Gain0V256
	}
}

// DataRate is samples per second. The zero value leaves the current
// setting alone.
type DataRate uint8

const (
	Rate8 DataRate = iota + 1
	Rate16
	Rate32
	Rate64
	Rate128
	Rate250
	Rate475
	Rate860
)

// bits is the DR field of the config register.
func (r DataRate) bits() uint16 {
	if r == 0 {
		return uint16(Rate128-1) << 5
	}
	return uint16(r-1) << 5
}

// period is one conversion, rounded up.
func (r DataRate) period() time.Duration {
	switch r {
	case Rate8:
		return 125 * time.Millisecond
	case Rate16:
		return 63 * time.Millisecond
	case Rate32:
		return 32 * time.Millisecond
	case Rate64:
		return 16 * time.Millisecond
	case Rate250:
		return 4 * time.Millisecond
	case Rate475:
		return 3 * time.Millisecond
	case Rate860:
		return 2 * time.Millisecond
	default:
		return 8 * time.Millisecond
	}
}

var (
	ErrChannel = errors.New("ads1115: channel out of range")
	ErrTimeout = errors.New("ads1115: conversion timeout")
)

// Config controls the measurement. All fields are optional.
type Config struct {
	// Address defaults to 0x48.
	Address uint16
	// Gain defaults to Gain2V048 (the power-on value).
	Gain Gain
	// Rate defaults to Rate128.
	Rate DataRate
	// Timeout bounds polling after the conversion period. Default 50 ms.
	Timeout time.Duration
}

// Device wraps an I2C connection to an ADS1115.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cfg Config
	buf [3]byte
}

// New creates a Device. The bus must already be configured.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address, cfg: Config{Gain: Gain2V048, Rate: Rate128}}
}

// Configure applies cfg and checks that the device answers.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		if c.Gain != 0 {
			d.cfg.Gain = c.Gain
		}
		if c.Rate != 0 {
			d.cfg.Rate = c.Rate
		}
		d.cfg.Timeout = c.Timeout
	}
	if d.cfg.Timeout <= 0 {
		d.cfg.Timeout = 50 * time.Millisecond
	}
	_, err := d.readReg(regConfig)
	return err
}

func (d *Device) Gain() Gain { return d.cfg.Gain }

// ReadRaw performs one single-shot conversion of channel ch (0..3) against
// ground and returns the signed result.
func (d *Device) ReadRaw(ch int) (int16, error) {
	if ch < 0 || ch > 3 {
		return 0, ErrChannel
	}
	cfg := osSingle | uint16(muxSingle0+ch*0x1000) | d.cfg.Gain.bits() | modeSingle | d.cfg.Rate.bits() | compQueOff
	if err := d.writeReg(regConfig, cfg); err != nil {
		return 0, err
	}
	time.Sleep(d.cfg.Rate.period())
	deadline := time.Now().Add(d.cfg.Timeout)
	for {
		st, err := d.readReg(regConfig)
		if err != nil {
			return 0, err
		}
		if st&osSingle != 0 {
			break
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
	v, err := d.readReg(regConversion)
	return int16(v), err
}

// ReadVolts converts ReadRaw to volts at the configured gain.
func (d *Device) ReadVolts(ch int) (float64, error) {
	raw, err := d.ReadRaw(ch)
	if err != nil {
		return 0, err
	}
	return Volts(raw, d.cfg.Gain), nil
}

// Volts scales a raw result: raw * FS / 32768.
func Volts(raw int16, g Gain) float64 {
	return float64(raw) * g.FullScale() / 32768
}

func (d *Device) writeReg(reg uint8, v uint16) error {
	d.buf[0], d.buf[1], d.buf[2] = reg, byte(v>>8), byte(v)
	return d.bus.Tx(d.Address, d.buf[:3], nil)
}

func (d *Device) readReg(reg uint8) (uint16, error) {
	d.buf[0] = reg
	if err := d.bus.Tx(d.Address, d.buf[:1], d.buf[1:3]); err != nil {
		return 0, err
	}
	return uint16(d.buf[1])<<8 | uint16(d.buf[2]), nil
}
