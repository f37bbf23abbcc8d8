// Package aggregate takes repeated sample batches from sensor sources,
// reduces them to per-channel means and writes both to CSV record streams.
package aggregate

import (
	"log/slog"
	"time"

	"picologger-go/errcode"
	"picologger-go/x/mathx"
)

// Sample is one channel value. OK is false for a gap.
type Sample struct {
	Value float64
	OK    bool
}

// Source yields one batch per Read: one Sample per channel, in Channels
// order. A Read error turns the whole batch into gaps.
type Source interface {
	Name() string
	Channels() []string
	Read() ([]Sample, error)
}

// Spec binds a source to its sample count and inter-batch delay.
type Spec struct {
	Source  Source
	Samples int
	Delay   time.Duration
}

// Group is a named set of sources collected together ("sen", "sys").
type Group struct {
	Name  string
	Specs []Spec
}

// Reading is the transient result for one source.
type Reading struct {
	Source   string
	Channels []string
	Raw      [][]Sample // one row per batch
	Means    []Sample   // OK false when the channel has no valid sample
}

// Absent counts channels with no valid sample.
func (r Reading) Absent() int {
	n := 0
	for _, m := range r.Means {
		if !m.OK {
			n++
		}
	}
	return n
}

type ReadingGroup struct {
	Name     string
	Readings []Reading
}

type Aggregator struct {
	pause func(time.Duration)
	log   *slog.Logger
}

// New returns an Aggregator that waits between batches with pause.
func New(pause func(time.Duration), log *slog.Logger) *Aggregator {
	return &Aggregator{pause: pause, log: log}
}

// Collect takes Samples batches from every source of g. It fails with
// errcode.TotalSampleLoss only when every channel of every source is absent.
func (a *Aggregator) Collect(g Group) (ReadingGroup, error) {
	return a.collect(g, false)
}

// Prime takes a single batch per source without pausing. Nothing is
// persisted; the result only shows the sources answer.
func (a *Aggregator) Prime(g Group) (ReadingGroup, error) {
	return a.collect(g, true)
}

func (a *Aggregator) collect(g Group, prime bool) (ReadingGroup, error) {
	out := ReadingGroup{Name: g.Name, Readings: make([]Reading, 0, len(g.Specs))}
	channels, absent := 0, 0
	for _, sp := range g.Specs {
		n, delay := sp.Samples, sp.Delay
		if prime || n < 1 {
			n, delay = 1, 0
		}
		r := a.read(sp.Source, n, delay)
		channels += len(r.Channels)
		absent += r.Absent()
		out.Readings = append(out.Readings, r)
	}
	if channels > 0 && absent == channels {
		a.log.Error("total sample loss", "group", g.Name, "channels", channels)
		return out, errcode.New(errcode.TotalSampleLoss, "aggregate.collect", "no valid sample in group "+g.Name)
	}
	return out, nil
}

func (a *Aggregator) read(src Source, n int, delay time.Duration) Reading {
	chs := src.Channels()
	r := Reading{Source: src.Name(), Channels: chs, Raw: make([][]Sample, 0, n)}
	valid := make([][]float64, len(chs))
	gaps := 0
	for i := 0; i < n; i++ {
		if i > 0 && delay > 0 {
			a.pause(delay)
		}
		row := make([]Sample, len(chs))
		batch, err := src.Read()
		if err != nil {
			a.log.Debug("batch failed", "source", r.Source, "batch", i, "err", err)
		} else {
			copy(row, batch)
		}
		for c := range row {
			if row[c].OK {
				valid[c] = append(valid[c], row[c].Value)
			} else {
				gaps++
			}
		}
		r.Raw = append(r.Raw, row)
	}
	r.Means = make([]Sample, len(chs))
	for c := range chs {
		m, ok := mathx.Mean(valid[c])
		r.Means[c] = Sample{Value: m, OK: ok}
	}
	if gaps > 0 {
		a.log.Warn("sample loss", "code", errcode.PartialSampleLoss, "source", r.Source,
			"gaps", gaps, "of", n*len(chs), "absent", r.Absent())
	}
	return r
}
