//go:build rp2040

package main

import (
	"context"
	"log/slog"
	"time"

	"picologger-go/services/diag"
	"picologger-go/services/lifecycle"
	"picologger-go/services/picologger"
	"picologger-go/services/platform"
	"picologger-go/types"
)

func main() {
	level := new(slog.LevelVar)

	cache, err := platform.MountCache(nil)
	if err != nil {
		// Nothing to log to yet.
		println("cache:", err.Error())
		time.Sleep(picologger.FailSafeSleep)
		platform.Reboot()
	}

	var board *platform.Pico
	sink := diag.NewSink(cache, lifecycle.StrayLog, nil)
	log := diag.NewClocked(sink, level, func() time.Time {
		if board != nil {
			return board.Now()
		}
		return time.Now().UTC()
	})

	res, err := picologger.Boot(picologger.Env{
		Board: picologger.DefaultBoard,
		Cache: cache,
		Sink:  sink,
		Level: level,
		Log:   log,
		Open: func(cfg types.Config) (picologger.Hardware, error) {
			sink.SetMirror(platform.Console(cfg.HW.UART))
			p, err := platform.Open(cfg, log)
			if err != nil {
				return picologger.Hardware{}, err
			}
			board = p
			log.Info("boot", "reason", p.BootReason())
			return picologger.Hardware{
				Board:   p,
				Rail:    p.Rail(),
				Volume:  p.Volume(),
				RTC:     p.RTC(),
				AFE:     p.AFE(),
				LED:     p.LED(),
				Enabled: p.Enabled,
			}, nil
		},
		Idle: func() {
			for {
				board.Pause(time.Minute)
			}
		},
	})

	// Deep sleep resets the board, so reaching here means something refused
	// to suspend. Sleep and start over.
	log.Log(context.Background(), diag.LevelCritical, "boot returned", "kind", res.Kind, "err", err)
	if board != nil {
		board.Suspend(types.SleepDeep, picologger.FailSafeSleep)
	}
	time.Sleep(picologger.FailSafeSleep)
	platform.Reboot()
}
