package aggregate

import (
	"bytes"
	"encoding/csv"
	"io"
	"log/slog"
	"time"

	"picologger-go/errcode"
	"picologger-go/services/storage"
	"picologger-go/x/mathx"
	"picologger-go/x/strconvx"
	"picologger-go/x/timex"
)

const summaryDecimals = 4

// Recorder appends readings to the detail (<src>_raw.csv) and summary
// (<src>.csv) streams. Each stream exists twice: in the records directory
// (full history) and the data directory (working copy).
type Recorder struct {
	fs      storage.FS
	records string
	data    string
	log     *slog.Logger
}

func NewRecorder(fs storage.FS, recordsDir, dataDir string, log *slog.Logger) *Recorder {
	return &Recorder{fs: fs, records: recordsDir, data: dataDir, log: log}
}

// RawName and SummaryName are the stream file names for a source.
func RawName(src string) string     { return src + "_raw.csv" }
func SummaryName(src string) string { return src + ".csv" }

func (r *Recorder) dirs() []string { return []string{r.records, r.data} }

// Prepare writes stream headers where missing. With truncate the data
// directory copies are reset to just the header.
func (r *Recorder) Prepare(g Group, truncate bool) error {
	const op = "aggregate.prepare"
	for _, sp := range g.Specs {
		name := sp.Source.Name()
		var b bytes.Buffer
		if err := encode(&b, []string{"timestamp"}, sp.Source.Channels()); err != nil {
			return errcode.Wrap(errcode.Error, op, err)
		}
		hdr := b.Bytes()
		for _, dir := range r.dirs() {
			for _, f := range []string{RawName(name), SummaryName(name)} {
				p := storage.Join(dir, f)
				if truncate && dir == r.data {
					if err := r.fs.WriteFile(p, hdr); err != nil {
						return errcode.Wrap(errcode.StorageUnavailable, op, err)
					}
					continue
				}
				ok, err := r.fs.Exists(p)
				if err != nil {
					return errcode.Wrap(errcode.StorageUnavailable, op, err)
				}
				if ok {
					continue
				}
				if err := r.fs.AppendFile(p, hdr); err != nil {
					return errcode.Wrap(errcode.StorageUnavailable, op, err)
				}
			}
		}
	}
	return nil
}

// Write appends one detail row per batch and one summary row per source,
// all tagged with slot. Gaps and absent means are empty cells.
func (r *Recorder) Write(rg ReadingGroup, slot time.Time) error {
	const op = "aggregate.write"
	ts := []string{timex.Format(slot)}
	for _, rd := range rg.Readings {
		var raw, sum bytes.Buffer
		for _, row := range rd.Raw {
			if err := encode(&raw, ts, cells(row, -1)); err != nil {
				return errcode.Wrap(errcode.Error, op, err)
			}
		}
		if err := encode(&sum, ts, cells(rd.Means, summaryDecimals)); err != nil {
			return errcode.Wrap(errcode.Error, op, err)
		}
		for _, dir := range r.dirs() {
			if err := r.fs.AppendFile(storage.Join(dir, RawName(rd.Source)), raw.Bytes()); err != nil {
				return errcode.Wrap(errcode.StorageUnavailable, op, err)
			}
			if err := r.fs.AppendFile(storage.Join(dir, SummaryName(rd.Source)), sum.Bytes()); err != nil {
				return errcode.Wrap(errcode.StorageUnavailable, op, err)
			}
		}
		r.log.Debug("recorded", "group", rg.Name, "source", rd.Source, "rows", len(rd.Raw))
	}
	return nil
}

func cells(xs []Sample, decimals int) []string {
	out := make([]string, len(xs))
	for i, x := range xs {
		if !x.OK {
			continue
		}
		v := x.Value
		if decimals >= 0 {
			v = mathx.Round(v, decimals)
		}
		out[i] = strconvx.FormatFloat(v, 'f', -1, 64)
	}
	return out
}

// encode writes head and rest as one CSV row to dst.
func encode(dst io.Writer, head, rest []string) error {
	w := csv.NewWriter(dst)
	if err := w.Write(append(append([]string(nil), head...), rest...)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
