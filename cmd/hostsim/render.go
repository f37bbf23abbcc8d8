package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"picologger-go/errcode"
	"picologger-go/services/picologger"
	"picologger-go/services/platform"
	"picologger-go/types"
	"picologger-go/x/timex"
)

type bootRow struct {
	n      int
	reason types.BootReason
	wake   time.Time
	res    picologger.Result
	err    error
	board  *platform.SimBoard
}

// ledColors maps indicator palette names to terminal colours.
var ledColors = map[string]*color.Color{
	"red":     color.New(color.FgRed, color.Bold),
	"green":   color.New(color.FgGreen),
	"blue":    color.New(color.FgBlue),
	"white":   color.New(color.FgWhite, color.Bold),
	"yellow":  color.New(color.FgYellow),
	"cyan":    color.New(color.FgCyan),
	"magenta": color.New(color.FgMagenta),
	"dim-red": color.New(color.FgRed, color.Faint),
	"orange":  color.New(color.FgHiRed),
}

// ledTrace renders the colours shown during a boot, collapsing repeats and
// skipping the dark phases of flashes.
func ledTrace(names []string) string {
	var b strings.Builder
	last := ""
	for _, n := range names {
		if n == "off" || n == last {
			continue
		}
		last = n
		if c, ok := ledColors[n]; ok {
			b.WriteString(c.Sprint("●"))
		}
	}
	return b.String()
}

func orDash(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return timex.Format(t)
}

func render(w io.Writer, rows []bootRow, sim *platform.Sim) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Boot", "Reason", "Wall", "Result", "Phase", "Slot", "Next", "Sleep", "LED", "Error"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	red := color.New(color.FgRed).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()

	data := make([][]string, 0, len(rows))
	for _, r := range rows {
		result := green(r.res.Kind.String())
		errText := "-"
		if r.err != nil {
			result = red(r.res.Kind.String())
			errText = string(errcode.Of(r.err))
		}
		sleep := "-"
		if r.board.Suspended {
			sleep = r.board.Slept.Round(time.Millisecond).String()
		}
		data = append(data, []string{
			strconv.Itoa(r.n),
			r.reason.String(),
			timex.Format(r.wake),
			result,
			r.res.Phase.String(),
			orDash(r.res.Schedule.Current),
			orDash(r.res.Schedule.Next),
			sleep,
			ledTrace(r.board.LEDLog),
			errText,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d boots, %d self-resets, wall now %s\n", sim.Boots, sim.Resets, timex.Format(sim.Wall()))
	return err
}
