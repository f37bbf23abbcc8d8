// Package picologger is the boot entry: it picks the configuration, brings
// up the board and runs either the one-time setup or a logging cycle.
package picologger

import (
	"context"
	"log/slog"
	"time"

	"picologger-go/errcode"
	"picologger-go/services/config"
	"picologger-go/services/diag"
	"picologger-go/services/lifecycle"
	"picologger-go/services/schedule"
	"picologger-go/services/status"
	"picologger-go/services/storage"
	"picologger-go/types"
)

// DefaultBoard names the embedded configuration used until one is persisted.
const DefaultBoard = "pico"

// FailSafeSleep is how long a board with unusable configuration sleeps
// before trying again.
const FailSafeSleep = 15 * time.Minute

// Hardware is the board as opened for one configuration.
type Hardware struct {
	Board  lifecycle.Board
	Rail   lifecycle.Rail
	Volume lifecycle.Volume
	RTC    lifecycle.RTC
	AFE    lifecycle.Frontend // nil when not fitted
	LED    lifecycle.Indicator
	// Enabled reads the "logging enabled" switch.
	Enabled func() bool
}

// Env is what main hands to Boot.
type Env struct {
	Board string // embedded configuration name; DefaultBoard when empty
	Cache storage.FS
	Sink  *diag.Sink
	Level *slog.LevelVar
	Log   *slog.Logger
	Open  func(cfg types.Config) (Hardware, error)
	// Idle parks the board while logging is disabled. May be nil.
	Idle func()
}

// Kind is what a boot ended up doing.
type Kind uint8

const (
	Halted Kind = iota
	Idle
	Setup
	Cycle
)

func (k Kind) String() string {
	switch k {
	case Idle:
		return "idle"
	case Setup:
		return "setup"
	case Cycle:
		return "cycle"
	default:
		return "halted"
	}
}

// Result summarises one boot.
type Result struct {
	Kind     Kind
	Phase    lifecycle.Phase
	Schedule schedule.State
}

// Boot runs one boot to the point of suspending (or idling).
func Boot(env Env) (Result, error) {
	log := env.Log
	if env.Board == "" {
		env.Board = DefaultBoard
	}
	svc := config.NewService(env.Cache, log)

	configured, cerr := svc.Exists()
	var cfg types.Config
	if cerr == nil && configured {
		cfg, cerr = svc.Load()
	}
	if cerr != nil || !configured {
		// The board default still wires the indicator and switch.
		def, err := config.Default(env.Board)
		if err != nil {
			return Result{}, err
		}
		cfg = def
	}
	if env.Level != nil {
		env.Level.Set(diag.ParseLevel(cfg.Log.Level))
	}

	hw, err := env.Open(cfg)
	if err != nil {
		log.Log(context.Background(), diag.LevelCritical, "board bring-up failed", "err", err)
		return Result{}, errcode.Wrap(errcode.PeripheralUnavailable, "picologger.open", err)
	}

	if hw.Enabled != nil && !hw.Enabled() {
		hw.Rail.Set(true)
		hw.LED.On(status.White)
		log.Info("logging disabled by switch, idling")
		if env.Idle != nil {
			env.Idle()
		}
		return Result{Kind: Idle}, nil
	}

	if cerr != nil {
		hw.LED.On(status.Red)
		log.Log(context.Background(), diag.LevelCritical, "configuration unusable", "path", config.Path, "err", cerr)
		hw.Board.Suspend(types.SleepDeep, FailSafeSleep)
		return Result{}, cerr
	}

	o := lifecycle.New(lifecycle.Deps{
		Config: cfg,
		Board:  hw.Board,
		Rail:   hw.Rail,
		Volume: hw.Volume,
		RTC:    hw.RTC,
		AFE:    hw.AFE,
		Cache:  env.Cache,
		Sink:   env.Sink,
		LED:    hw.LED,
		Log:    log,
	})

	if !configured {
		log.Info("no configuration, running setup", "board", env.Board)
		err := o.Setup()
		if err == nil {
			_, err = svc.Persist(env.Board)
		}
		o.Sleep(types.SleepDeep)
		return Result{Kind: Setup, Phase: o.Phase(), Schedule: o.Schedule()}, err
	}

	err = o.Run(types.SleepDeep)
	return Result{Kind: Cycle, Phase: o.Phase(), Schedule: o.Schedule()}, err
}
