// Package config loads the typed logger configuration from internal flash and
// persists the embedded board default during Setup.
package config

import (
	"encoding/json"
	"log/slog"
	"time"

	"picologger-go/errcode"
	"picologger-go/services/storage"
	"picologger-go/types"
	"picologger-go/x/strconvx"
	"picologger-go/x/strx"

	"github.com/andreyvit/tinyjson"
)

const (
	Dir  = "/.config"
	Path = Dir + "/picologger.json"
)

// EmbeddedConfigLookup allows overriding how board defaults are resolved.
var EmbeddedConfigLookup = func(board string) ([]byte, bool) {
	b, ok := embeddedConfigs[board]
	return b, ok
}

// Service reads and writes the configuration document on fs.
type Service struct {
	fs  storage.FS
	log *slog.Logger
}

func NewService(fs storage.FS, log *slog.Logger) *Service {
	return &Service{fs: fs, log: log}
}

// Exists reports whether a persisted configuration is present.
func (s *Service) Exists() (bool, error) {
	ok, err := s.fs.Exists(Path)
	if err != nil {
		return false, errcode.Wrap(errcode.StorageUnavailable, "config.exists", err)
	}
	return ok, nil
}

// Load reads, defaults and validates the persisted configuration.
func (s *Service) Load() (types.Config, error) {
	b, err := s.fs.ReadFile(Path)
	if err != nil {
		return types.Config{}, errcode.Wrap(errcode.StorageUnavailable, "config.load", err)
	}
	return Decode(b)
}

// Persist writes the embedded default for board and returns it decoded.
func (s *Service) Persist(board string) (types.Config, error) {
	const op = "config.persist"
	raw, ok := EmbeddedConfigLookup(board)
	if !ok || len(raw) == 0 {
		return types.Config{}, errcode.New(errcode.InvalidConfig, op, "no embedded config for board "+board)
	}
	cfg, err := embedded(raw)
	if err != nil {
		return types.Config{}, err
	}
	if err := s.fs.MkdirAll(Dir); err != nil {
		return cfg, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	if err := s.fs.WriteFile(Path, raw); err != nil {
		return cfg, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	s.log.Info("configuration persisted", "board", board, "path", Path)
	return cfg, nil
}

// Default decodes the embedded document for board without persisting it.
func Default(board string) (types.Config, error) {
	raw, ok := EmbeddedConfigLookup(board)
	if !ok {
		return types.Config{}, errcode.New(errcode.InvalidConfig, "config.default", "no embedded config for board "+board)
	}
	return embedded(raw)
}

// embedded checks an embedded document is one JSON object before it is
// decoded. The check runs on the raw bytes, the same way the document is
// written to flash.
func embedded(raw []byte) (types.Config, error) {
	if err := object(raw); err != nil {
		return types.Config{}, err
	}
	return Decode(raw)
}

func object(raw []byte) (err error) {
	const op = "config.embedded"
	defer func() {
		if p := recover(); p != nil {
			err = errcode.New(errcode.InvalidConfig, op, "malformed embedded config")
		}
	}()
	r := tinyjson.Raw(raw)
	val := r.Value()
	r.EnsureEOF()
	if _, ok := val.(map[string]any); !ok {
		return errcode.New(errcode.InvalidConfig, op, "embedded config is not a JSON object")
	}
	return nil
}

// Decode parses a document, fills defaults and validates.
func Decode(b []byte) (types.Config, error) {
	var c types.Config
	if err := json.Unmarshal(b, &c); err != nil {
		return c, errcode.Wrap(errcode.InvalidConfig, "config.decode", err)
	}
	ApplyDefaults(&c)
	if err := Validate(c); err != nil {
		return c, err
	}
	return c, nil
}

// ---- defaults ----

func dur(d *types.Duration, v time.Duration) {
	if *d <= 0 {
		*d = types.Duration(v)
	}
}

func samples(s *types.SampleConfig, n int, delay time.Duration) {
	if s.Count <= 0 {
		s.Count = n
	}
	dur(&s.Delay, delay)
}

// ApplyDefaults fills zero fields with the board defaults.
func ApplyDefaults(c *types.Config) {
	c.Log.Path = strx.Coalesce(c.Log.Path, "/sd/picologger.log")
	c.Log.Level = strx.Coalesce(c.Log.Level, "INFO")

	if c.HW.RTC.Hz == 0 {
		c.HW.RTC.Hz = 100_000
	}
	if c.HW.EADC != nil && c.HW.EADC.Hz == 0 {
		c.HW.EADC.Hz = 400_000
	}
	if c.HW.UART != nil && c.HW.UART.Baud == 0 {
		c.HW.UART.Baud = 9600
	}

	dur(&c.TIM.Interval, 15*time.Minute)
	dur(&c.TIM.Tolerance, 2*time.Minute)
	dur(&c.TIM.WakeHaste, 3*time.Second)
	samples(&c.TIM.SMS, 25, 25*time.Millisecond)
	samples(&c.TIM.OW, 3, 750*time.Millisecond)
	samples(&c.TIM.BAT, 7, 25*time.Millisecond)
	samples(&c.TIM.ITEMP, 7, 25*time.Millisecond)

	dur(&c.SEN.OW.Conversion, 750*time.Millisecond)
	if c.SEN.SMS.Loc == "" {
		c.SEN.SMS.Loc = types.ADCInternal
	}
	if c.SYS.BAT.Loc == "" {
		c.SYS.BAT.Loc = types.ADCInternal
	}
	if c.SYS.BAT.VMax <= c.SYS.BAT.VMin {
		c.SYS.BAT.VMin, c.SYS.BAT.VMax = 3.0, 4.2
	}
}

// ---- validation ----

func gpio(n int) bool { return n >= 0 && n <= 28 }

func invalid(msg string) error { return errcode.New(errcode.InvalidConfig, "config.validate", msg) }

// Validate checks ranges the firmware relies on.
func Validate(c types.Config) error {
	if c.TIM.Interval.D() < time.Second {
		return invalid("tim.interval must be at least 1s")
	}
	if c.TIM.Tolerance.D() < 0 || c.TIM.Tolerance.D() >= c.TIM.Interval.D() {
		return invalid("tim.delta_interval must be below tim.interval")
	}
	if c.TIM.WakeHaste.D() >= c.TIM.Interval.D() {
		return invalid("tim.wake_haste must be below tim.interval")
	}
	pins := map[string]int{
		"switch.pwr": c.HW.Switch.PWR, "switch.fn": c.HW.Switch.FN,
		"sled.r": c.HW.LED.R, "sled.g": c.HW.LED.G, "sled.b": c.HW.LED.B,
		"rtc.sda": c.HW.RTC.SDA, "rtc.scl": c.HW.RTC.SCL,
		"sdc.cs": c.HW.SDC.CS, "sdc.sck": c.HW.SDC.SCK, "sdc.mosi": c.HW.SDC.MOSI, "sdc.miso": c.HW.SDC.MISO,
		"ow.pin": c.SEN.OW.Pin,
	}
	for k, p := range pins {
		if !gpio(p) {
			return invalid(k + " is not a GPIO (" + strconvx.Itoa(p) + ")")
		}
	}
	if c.HW.RTC.ID < 0 || c.HW.RTC.ID > 1 || (c.HW.EADC != nil && (c.HW.EADC.ID < 0 || c.HW.EADC.ID > 1)) {
		return invalid("i2c id must be 0 or 1")
	}
	for _, ch := range c.SEN.SMS.Channels {
		if ch.Ch < 0 || ch.Ch > 3 {
			return invalid("sen.sms channel out of range: " + strconvx.Itoa(ch.Ch))
		}
	}
	ext := func(l types.ADCLocation) bool { return l == types.ADCExternal || l == types.ADCExtAlias }
	if (ext(c.SEN.SMS.Loc) || ext(c.SYS.BAT.Loc)) && c.HW.EADC == nil {
		return invalid("hw.eadc required by an external ADC location")
	}
	return nil
}
