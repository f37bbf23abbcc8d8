//go:build rp2040

package platform

import (
	"log/slog"
	"machine"

	"tinygo.org/x/drivers/ds18b20"
	"tinygo.org/x/drivers/onewire"
	"tinygo.org/x/drivers/sdcard"
	"tinygo.org/x/tinyfs/fatfs"

	"picologger-go/drivers/ads1115"
	"picologger-go/errcode"
	"picologger-go/services/rtc"
	"picologger-go/services/storage"
	"picologger-go/types"
)

// ---- RTC ----

// rtcPort starts the RTC bus on Activate; the RTC's release stops it.
type rtcPort struct {
	*rtc.RTC
	o *i2cOwner
}

func newRTCPort(cfg types.I2CConfig, log *slog.Logger) *rtcPort {
	o := newI2COwner(cfg)
	return &rtcPort{RTC: rtc.New(o.bus(), o.stop, log), o: o}
}

func (p *rtcPort) Activate() error {
	if err := p.o.start(); err != nil {
		return errcode.Wrap(errcode.PeripheralUnavailable, "rtc.bus", err)
	}
	if err := p.RTC.Activate(); err != nil {
		_ = p.o.stop()
		return err
	}
	return nil
}

// ---- external ADC ----

type frontend struct {
	o   *i2cOwner
	dev ads1115.Device
}

func newFrontend(cfg types.I2CConfig) *frontend {
	o := newI2COwner(cfg)
	return &frontend{o: o, dev: ads1115.New(o.bus())}
}

func (f *frontend) Activate() error {
	if err := f.o.start(); err != nil {
		return err
	}
	if err := f.dev.Configure(ads1115.Config{Address: f.o.cfg.Addr, Gain: ads1115.Gain4V096}); err != nil {
		_ = f.o.stop()
		return err
	}
	return nil
}

func (f *frontend) Release() error                    { return f.o.stop() }
func (f *frontend) ReadRaw(ch int) (int16, error)     { return f.dev.ReadRaw(ch) }
func (f *frontend) ReadVolts(ch int) (float64, error) { return f.dev.ReadVolts(ch) }

// ---- SD volume ----

// sdVolume mounts FAT on the SD card under /sd. The card is initialised on
// every mount because the rail was off.
type sdVolume struct {
	cfg types.SPIConfig
	fs  *fatfs.FATFS
	m   storage.Mount
}

func spiBus(id int) *machine.SPI {
	if id == 1 {
		return machine.SPI1
	}
	return machine.SPI0
}

func (v *sdVolume) Mount() error {
	c := v.cfg
	dev := sdcard.New(spiBus(c.ID), machine.Pin(c.SCK), machine.Pin(c.MOSI), machine.Pin(c.MISO), machine.Pin(c.CS))
	if err := dev.Configure(); err != nil {
		return err
	}
	fs := fatfs.New(&dev)
	fs.Configure(&fatfs.Config{SectorSize: 512})
	if err := fs.Mount(); err != nil {
		return err
	}
	v.fs = fs
	v.m.Attach(storage.TinyFS{FS: fs, Prefix: "/sd"})
	return nil
}

func (v *sdVolume) Unmount() error {
	v.m.Detach()
	var err error
	if v.fs != nil {
		err = v.fs.Unmount()
		v.fs = nil
	}
	floatPins(v.cfg.SCK, v.cfg.MOSI, v.cfg.MISO, v.cfg.CS)
	return err
}

func (v *sdVolume) FS() storage.FS { return &v.m }

// ---- one-wire probes ----

type owProbes struct {
	bus  onewire.Device
	dev  ds18b20.Device
	roms [][]uint8
}

// searchProbes enumerates DS18B20s on pin. Nil when none answer.
func searchProbes(pin int) *owProbes {
	bus := onewire.New(machine.Pin(pin))
	roms, err := bus.Search(onewire.SEARCH_ROM)
	if err != nil || len(roms) == 0 {
		return nil
	}
	return &owProbes{bus: bus, dev: ds18b20.New(bus), roms: roms}
}

func (p *owProbes) Count() int { return len(p.roms) }

// Convert broadcasts one conversion to every probe.
func (p *owProbes) Convert() error {
	if err := p.bus.Select(nil); err != nil {
		return err
	}
	p.bus.Write(ds18b20.CONVERT_TEMPERATURE)
	return nil
}

func (p *owProbes) ReadMilliC(i int) (int32, error) {
	return p.dev.ReadTemperature(p.roms[i])
}
