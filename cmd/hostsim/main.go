// hostsim runs the logger against a simulated board on the host. Flash and
// SD card are directories, wall time is simulated, and every boot is
// reported in a table.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"picologger-go/services/diag"
	"picologger-go/services/lifecycle"
	"picologger-go/services/picologger"
	"picologger-go/services/platform"
	"picologger-go/services/storage"
	"picologger-go/types"
	"picologger-go/x/timex"
)

type options struct {
	dir      string
	cycles   int
	start    string
	probes   int
	noAFE    bool
	disabled bool
	rtcLost  bool
	console  bool

	failMountAt int
	deadAFEAt   int
	failRTCAt   int
}

var opts options

var rootCmd = &cobra.Command{
	Use:           "hostsim",
	Short:         "Run logger boots against a simulated board.",
	Long:          `hostsim boots the logger repeatedly on a simulated RP2040 board, keeping flash and SD card contents in a host directory.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(opts)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.dir, "dir", "d", "hostsim-data", "Directory holding flash/ and card/")
	f.IntVarP(&opts.cycles, "cycles", "n", 8, "Number of boots to run")
	f.StringVar(&opts.start, "start", "2024-01-01T00:00:00", "Wall time at first power-up (ISO-8601)")
	f.IntVar(&opts.probes, "probes", 1, "DS18B20 probes on the one-wire bus")
	f.BoolVar(&opts.noAFE, "no-afe", false, "Leave the external ADC unfitted")
	f.BoolVar(&opts.disabled, "disabled", false, "Hold the logging switch off")
	f.BoolVar(&opts.rtcLost, "rtc-lost", false, "Start with an RTC that lost time")
	f.BoolVar(&opts.console, "console", false, "Mirror the diagnostic log to stderr")
	f.IntVar(&opts.failMountAt, "fail-mount-at", 0, "Boot number whose SD mount fails")
	f.IntVar(&opts.deadAFEAt, "dead-afe-at", 0, "Boot number whose external ADC stops answering")
	f.IntVar(&opts.failRTCAt, "fail-rtc-at", 0, "Boot number whose RTC does not answer")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hostsim:", err)
		os.Exit(1)
	}
}

func run(o options) error {
	start, err := timex.Parse(o.start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	cache := storage.Dir{Root: filepath.Join(o.dir, "flash")}
	card := storage.Dir{Root: filepath.Join(o.dir, "card")}
	for _, fs := range []storage.Dir{cache, card} {
		if err := fs.MkdirAll("/"); err != nil {
			return err
		}
	}

	sim := platform.NewSim(cache, card, platform.SimConfig{
		Start:    start,
		Probes:   o.probes,
		NoAFE:    o.noAFE,
		Disabled: o.disabled,
		RTCLost:  o.rtcLost,
	})

	var rows []bootRow
	for n := 1; n <= o.cycles; n++ {
		sim.Faults = platform.SimFaults{AFEDead: n == o.deadAFEAt}
		if n == o.failMountAt {
			sim.Faults.Mount = errors.New("card not detected")
		}
		if n == o.failRTCAt {
			sim.Faults.RTC = errors.New("rtc nack")
		}

		row := bootOnce(sim, o.console)
		row.n = n
		rows = append(rows, row)
		if row.res.Kind == picologger.Idle {
			break
		}
	}
	return render(os.Stdout, rows, sim)
}

// bootOnce runs one boot with a fresh sink and logger, as after a reset.
func bootOnce(sim *platform.Sim, console bool) bootRow {
	level := new(slog.LevelVar)
	b := sim.Boot()
	sink := diag.NewSink(sim.Cache(), lifecycle.StrayLog, nil)
	if console {
		sink.SetMirror(os.Stderr)
	}
	row := bootRow{reason: b.BootReason(), wake: sim.Wall()}
	row.res, row.err = picologger.Boot(picologger.Env{
		Cache: sim.Cache(),
		Sink:  sink,
		Level: level,
		Log:   diag.NewClocked(sink, level, b.Now),
		Open: func(types.Config) (picologger.Hardware, error) {
			return picologger.Hardware{
				Board:   b,
				Rail:    b.Rail(),
				Volume:  b.Volume(),
				RTC:     b.RTC(),
				AFE:     b.AFE(),
				LED:     b.LED(),
				Enabled: b.Enabled,
			}, nil
		},
	})
	row.board = b
	return row
}
