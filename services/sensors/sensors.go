// Package sensors turns the board's analog inputs, the external ADC and the
// one-wire probes into aggregate.Source values, and assembles the "sen" and
// "sys" groups from configuration.
package sensors

import (
	"math"
	"time"

	"picologger-go/services/aggregate"
	"picologger-go/x/mathx"
	"picologger-go/x/strconvx"
)

// Analog is one RP2040 ADC input, 0..65535 over 0..VRef.
type Analog interface{ Get() uint16 }

// Converter is an external ADC such as the ADS1115.
type Converter interface {
	ReadRaw(ch int) (int16, error)
	ReadVolts(ch int) (float64, error)
}

// Thermometers is a set of one-wire temperature probes sharing a bus.
type Thermometers interface {
	Count() int
	// Convert starts a conversion on every probe.
	Convert() error
	ReadMilliC(i int) (int32, error)
}

const (
	VRef        = 3.3
	adcFull     = 65535
	vsysDivider = 3
)

func volts(u16 uint16) float64 { return float64(u16) * VRef / adcFull }

func ok(v float64) aggregate.Sample { return aggregate.Sample{Value: v, OK: true} }

// ---- soil moisture ----

type SoilMoisture struct {
	names []string
	read  []func() (float64, error)
}

// NewSoilInternal reads raw u16 counts from RP2040 ADC inputs.
func NewSoilInternal(names []string, ins []Analog) *SoilMoisture {
	s := &SoilMoisture{names: names}
	for _, in := range ins {
		in := in
		s.read = append(s.read, func() (float64, error) { return float64(in.Get()), nil })
	}
	return s
}

// NewSoilExternal reads raw signed counts from channels of an external ADC.
func NewSoilExternal(names []string, adc Converter, chs []int) *SoilMoisture {
	s := &SoilMoisture{names: names}
	for _, ch := range chs {
		ch := ch
		s.read = append(s.read, func() (float64, error) {
			v, err := adc.ReadRaw(ch)
			return float64(v), err
		})
	}
	return s
}

func (s *SoilMoisture) Name() string       { return "sms" }
func (s *SoilMoisture) Channels() []string { return s.names }

// Read samples every channel; a failed channel is a gap, not a batch error.
func (s *SoilMoisture) Read() ([]aggregate.Sample, error) {
	out := make([]aggregate.Sample, len(s.read))
	for i, r := range s.read {
		if v, err := r(); err == nil {
			out[i] = ok(v)
		}
	}
	return out, nil
}

// ---- one-wire temperature ----

type OneWire struct {
	probes Thermometers
	conv   time.Duration
	pause  func(time.Duration)
	names  []string
}

// NewOneWire covers every probe found on the bus, channels T1..Tn.
func NewOneWire(p Thermometers, conversion time.Duration, pause func(time.Duration)) *OneWire {
	o := &OneWire{probes: p, conv: conversion, pause: pause}
	for i := 0; i < p.Count(); i++ {
		o.names = append(o.names, "T"+strconvx.Itoa(i+1))
	}
	return o
}

func (o *OneWire) Name() string       { return "ow" }
func (o *OneWire) Channels() []string { return o.names }

func (o *OneWire) Read() ([]aggregate.Sample, error) {
	if err := o.probes.Convert(); err != nil {
		return nil, err
	}
	o.pause(o.conv)
	out := make([]aggregate.Sample, len(o.names))
	for i := range o.names {
		mc, err := o.probes.ReadMilliC(i)
		if err != nil || !plausible(mc) {
			continue
		}
		out[i] = ok(float64(mc) / 1000)
	}
	return out, nil
}

// plausible is the DS18B20 / RP2040 sensor range, -40..+125 °C.
func plausible(milliC int32) bool { return milliC >= -40000 && milliC <= 125000 }

// ---- battery ----

// Battery reports terminal voltage and charge percent.
type Battery struct {
	volts      func() (float64, error)
	vmin, vmax float64
}

const (
	DefaultVMin = 3.0
	DefaultVMax = 4.2
)

func newBattery(f func() (float64, error), vmin, vmax float64) *Battery {
	if vmax <= vmin {
		vmin, vmax = DefaultVMin, DefaultVMax
	}
	return &Battery{volts: f, vmin: vmin, vmax: vmax}
}

// divider is (R1+R2)/R2; both zero means a direct connection.
func divider(r1, r2 float64) float64 {
	if r1 == 0 && r2 == 0 {
		return 1
	}
	return (r1 + r2) / r2
}

// NewBatteryExternal measures through an external ADC channel and divider.
func NewBatteryExternal(adc Converter, ch int, r1, r2, vmin, vmax float64) *Battery {
	k := divider(r1, r2)
	return newBattery(func() (float64, error) {
		v, err := adc.ReadVolts(ch)
		return v * k, err
	}, vmin, vmax)
}

// NewBatteryPin measures through an RP2040 ADC input and divider.
func NewBatteryPin(in Analog, r1, r2, vmin, vmax float64) *Battery {
	k := divider(r1, r2)
	return newBattery(func() (float64, error) { return volts(in.Get()) * k, nil }, vmin, vmax)
}

// NewBatteryVSYS measures VSYS on ADC3 through the Pico's 3:1 divider.
func NewBatteryVSYS(in Analog, vmin, vmax float64) *Battery {
	return newBattery(func() (float64, error) { return volts(in.Get()) * vsysDivider, nil }, vmin, vmax)
}

func (b *Battery) Name() string       { return "bat" }
func (b *Battery) Channels() []string { return []string{"V", "P"} }

func (b *Battery) Read() ([]aggregate.Sample, error) {
	v, err := b.volts()
	if err != nil {
		return nil, err
	}
	return []aggregate.Sample{ok(v), ok(Percent(v, b.vmin, b.vmax))}, nil
}

// Percent maps v linearly onto [vmin, vmax] as 0..100, rounded and clamped.
func Percent(v, vmin, vmax float64) float64 {
	p := (v - vmin) / (vmax - vmin) * 100
	return mathx.Clamp(math.Round(p), 0, 100)
}

// ---- internal temperature ----

type ITemp struct{ in Analog }

// NewITemp reads the RP2040 on-die sensor (ADC4).
func NewITemp(in Analog) *ITemp { return &ITemp{in: in} }

func (t *ITemp) Name() string       { return "itemp" }
func (t *ITemp) Channels() []string { return []string{"T"} }

func (t *ITemp) Read() ([]aggregate.Sample, error) {
	c := DieCelsius(t.in.Get())
	if !plausible(int32(c * 1000)) {
		return []aggregate.Sample{{}}, nil
	}
	return []aggregate.Sample{ok(c)}, nil
}

// DieCelsius is the RP2040 datasheet conversion: 27 - (V - 0.706)/0.001721.
func DieCelsius(u16 uint16) float64 {
	return 27 - (volts(u16)-0.706)/0.001721
}
