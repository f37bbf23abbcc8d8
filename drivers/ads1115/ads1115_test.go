package ads1115

import (
	"errors"
	"math"
	"testing"

	"tinygo.org/x/drivers/tester"
)

func newFake(t *testing.T) (*tester.I2CDevice16, Device) {
	bus := tester.NewI2CBus(t)
	dev := tester.NewI2CDevice16(t, Address)
	dev.Registers[regConfig] = 0x8583 // power-on default
	dev.Registers[regConversion] = 0
	bus.AddDevice(dev)
	return dev, New(bus)
}

func TestReadRawProgramsConfig(t *testing.T) {
	dev, d := newFake(t)
	if err := d.Configure(Config{Gain: Gain4V096}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	dev.Registers[regConversion] = 0x4000

	raw, err := d.ReadRaw(2)
	if err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	if raw != 0x4000 {
		t.Fatalf("raw = %#x", raw)
	}
	want := uint16(osSingle | 0x6000 | 0x0200 | modeSingle | 0x0080 | compQueOff)
	if got := dev.Registers[regConfig]; got != want {
		t.Fatalf("config = %#04x, want %#04x", got, want)
	}
}

func TestConfigureKeepsUnsetFields(t *testing.T) {
	dev, d := newFake(t)
	if err := d.Configure(Config{Rate: Rate8}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if g := d.Gain(); g != Gain2V048 {
		t.Fatalf("gain = %v, want power-on Gain2V048", g)
	}
	if _, err := d.ReadRaw(0); err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	want := uint16(osSingle | 0x4000 | 0x0400 | modeSingle | 0x0000 | compQueOff)
	if got := dev.Registers[regConfig]; got != want {
		t.Fatalf("config = %#04x, want %#04x", got, want)
	}

	if err := d.Configure(Config{Gain: Gain0V256}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if _, err := d.ReadRaw(0); err != nil {
		t.Fatalf("ReadRaw: %v", err)
	}
	want = uint16(osSingle | 0x4000 | 0x0A00 | modeSingle | 0x0000 | compQueOff)
	if got := dev.Registers[regConfig]; got != want {
		t.Fatalf("config after gain change = %#04x, want %#04x", got, want)
	}
}

func TestReadVoltsSigned(t *testing.T) {
	dev, d := newFake(t)
	_ = d.Configure(Config{Gain: Gain2V048})
	dev.Registers[regConversion] = 0xC000 // -16384

	v, err := d.ReadVolts(0)
	if err != nil {
		t.Fatalf("ReadVolts: %v", err)
	}
	if math.Abs(v-(-1.024)) > 1e-9 {
		t.Fatalf("volts = %v", v)
	}
}

func TestChannelRange(t *testing.T) {
	_, d := newFake(t)
	if _, err := d.ReadRaw(4); !errors.Is(err, ErrChannel) {
		t.Fatalf("want ErrChannel, got %v", err)
	}
}

func TestBusError(t *testing.T) {
	dev, d := newFake(t)
	dev.Err = errors.New("nack")
	if err := d.Configure(); err == nil {
		t.Fatal("Configure should fail on a silent bus")
	}
}

func TestGainFor(t *testing.T) {
	cases := map[float64]Gain{5: Gain6V144, 3.3: Gain4V096, 2.048: Gain2V048, 0.3: Gain0V512, 0.1: Gain0V256}
	for v, g := range cases {
		if got := GainFor(v); got != g {
			t.Fatalf("GainFor(%v) = %#x, want %#x", v, got, g)
		}
	}
	if fs := Gain4V096.FullScale(); fs != 4.096 {
		t.Fatalf("FullScale = %v", fs)
	}
}
