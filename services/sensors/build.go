package sensors

import (
	"log/slog"
	"time"

	"picologger-go/errcode"
	"picologger-go/services/aggregate"
	"picologger-go/types"
	"picologger-go/x/strconvx"
)

// Internal ADC inputs with fixed roles on the RP2040.
const (
	ADCVSYS = 3
	ADCTemp = 4
)

// Hardware is what the board hands to Build for one cycle.
type Hardware struct {
	// ADC opens an RP2040 ADC input (0..4).
	ADC func(ch int) (Analog, error)
	// EADC is nil when no external ADC is configured.
	EADC Converter
	// Probes is nil when the one-wire bus is not available.
	Probes Thermometers
	Pause  func(time.Duration)
}

const (
	GroupSen = "sen"
	GroupSys = "sys"
)

// Build assembles the "sen" and "sys" groups.
func Build(cfg types.Config, hw Hardware, log *slog.Logger) ([]aggregate.Group, error) {
	const op = "sensors.build"
	tim := cfg.TIM

	sen := aggregate.Group{Name: GroupSen}
	sms, err := soil(cfg.SEN.SMS, hw)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, op, err)
	}
	if sms != nil {
		sen.Specs = append(sen.Specs, spec(sms, tim.SMS))
	}
	if hw.Probes != nil && hw.Probes.Count() > 0 {
		ow := NewOneWire(hw.Probes, cfg.SEN.OW.Conversion.D(), hw.Pause)
		sen.Specs = append(sen.Specs, spec(ow, tim.OW))
	} else {
		log.Warn("no one-wire probes found", "pin", cfg.SEN.OW.Pin)
	}

	sys := aggregate.Group{Name: GroupSys}
	bat, err := battery(cfg.SYS.BAT, hw)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidConfig, op, err)
	}
	sys.Specs = append(sys.Specs, spec(bat, tim.BAT))
	in, err := hw.ADC(ADCTemp)
	if err != nil {
		return nil, errcode.Wrap(errcode.PeripheralUnavailable, op, err)
	}
	sys.Specs = append(sys.Specs, spec(NewITemp(in), tim.ITEMP))

	return []aggregate.Group{sen, sys}, nil
}

func spec(src aggregate.Source, sc types.SampleConfig) aggregate.Spec {
	return aggregate.Spec{Source: src, Samples: sc.Count, Delay: sc.Delay.D()}
}

func external(loc types.ADCLocation) bool {
	return loc == types.ADCExternal || loc == types.ADCExtAlias
}

func soil(c types.SMSConfig, hw Hardware) (aggregate.Source, error) {
	if len(c.Channels) == 0 {
		return nil, nil
	}
	names := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		names[i] = ch.Name
		if names[i] == "" {
			names[i] = "SM" + strconvx.Itoa(i+1)
		}
	}
	switch {
	case external(c.Loc):
		if hw.EADC == nil {
			return nil, errcode.New(errcode.InvalidConfig, "sensors.sms", "external ADC required for loc "+string(c.Loc))
		}
		chs := make([]int, len(c.Channels))
		for i, ch := range c.Channels {
			chs[i] = ch.Ch
		}
		return NewSoilExternal(names, hw.EADC, chs), nil
	case c.Loc == types.ADCInternal || c.Loc == types.ADCPin:
		ins := make([]Analog, len(c.Channels))
		for i, ch := range c.Channels {
			in, err := hw.ADC(ch.Ch)
			if err != nil {
				return nil, err
			}
			ins[i] = in
		}
		return NewSoilInternal(names, ins), nil
	}
	return nil, errcode.New(errcode.InvalidConfig, "sensors.sms", "unknown loc "+string(c.Loc))
}

func battery(c types.BatteryConfig, hw Hardware) (aggregate.Source, error) {
	if c.R1 < 0 || c.R2 < 0 || (c.R1 == 0) != (c.R2 == 0) {
		return nil, errcode.New(errcode.InvalidConfig, "sensors.bat", "R1 and R2 must both be positive")
	}
	switch {
	case external(c.Loc):
		if hw.EADC == nil {
			return nil, errcode.New(errcode.InvalidConfig, "sensors.bat", "external ADC required for loc "+string(c.Loc))
		}
		return NewBatteryExternal(hw.EADC, c.Ch, c.R1, c.R2, c.VMin, c.VMax), nil
	case c.Loc == types.ADCPin:
		in, err := hw.ADC(c.Ch)
		if err != nil {
			return nil, err
		}
		return NewBatteryPin(in, c.R1, c.R2, c.VMin, c.VMax), nil
	case c.Loc == types.ADCInternal:
		in, err := hw.ADC(ADCVSYS)
		if err != nil {
			return nil, err
		}
		return NewBatteryVSYS(in, c.VMin, c.VMax), nil
	}
	return nil, errcode.New(errcode.InvalidConfig, "sensors.bat", "unknown loc "+string(c.Loc))
}
