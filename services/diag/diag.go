// Package diag is the diagnostic log: log/slog over a sink that appends to a
// file and mirrors to the console UART.
package diag

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"picologger-go/services/storage"
)

// LevelCritical sits above slog.LevelError.
const LevelCritical = slog.LevelError + 4

// ParseLevel accepts DEBUG, INFO, WARNING (or WARN), ERROR and CRITICAL.
// Unknown names give INFO.
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	case "CRITICAL":
		return LevelCritical
	default:
		return slog.LevelInfo
	}
}

func levelName(l slog.Level) string {
	switch {
	case l >= LevelCritical:
		return "CRITICAL"
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARNING"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

// New returns a text logger writing to w at the given minimum level.
func New(w io.Writer, level slog.Leveler) *slog.Logger { return NewClocked(w, level, nil) }

// NewClocked is New with line times taken from now, the board's working
// clock, so the log lines up with record timestamps. A nil now keeps the
// handler's own time.
func NewClocked(w io.Writer, level slog.Leveler, now func() time.Time) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.LevelKey:
				if l, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(levelName(l))
				}
			case slog.TimeKey:
				if now != nil {
					a.Value = slog.TimeValue(now())
				}
			}
			return a
		},
	}))
}

// Discard is a logger that drops everything.
func Discard() *slog.Logger { return New(io.Discard, LevelCritical+1) }

// ---- sink ----

// Sink appends log lines to the stray log on internal flash until Relocate
// points it at the durable log on the data volume.
type Sink struct {
	mu        sync.Mutex
	stray     storage.FS
	strayPath string
	fs        storage.FS
	path      string
	mirror    io.Writer
}

// NewSink writes to strayPath on stray. mirror may be nil.
func NewSink(stray storage.FS, strayPath string, mirror io.Writer) *Sink {
	return &Sink{stray: stray, strayPath: strayPath, mirror: mirror}
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mirror != nil {
		_, _ = s.mirror.Write(p)
	}
	if s.fs != nil {
		err := s.fs.AppendFile(s.path, p)
		if err == nil {
			return len(p), nil
		}
		line := "log write failed (" + err.Error() + "): "
		_ = s.stray.AppendFile(s.strayPath, append([]byte(line), p...))
		return len(p), nil
	}
	if s.stray == nil {
		return len(p), nil
	}
	if err := s.stray.AppendFile(s.strayPath, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Relocate moves pending stray lines into path on fs and sends further
// output there. The switch happens even if the copy fails.
func (s *Sink) Relocate(fs storage.FS, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fs, s.path = fs, path
	if s.stray == nil {
		return nil
	}
	b, err := s.stray.ReadFile(s.strayPath)
	if err != nil {
		if storage.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(b) == 0 {
		return nil
	}
	if err := fs.AppendFile(path, b); err != nil {
		return err
	}
	return s.stray.Remove(s.strayPath)
}

// SetMirror copies further output to w (nil stops mirroring).
func (s *Sink) SetMirror(w io.Writer) {
	s.mu.Lock()
	s.mirror = w
	s.mu.Unlock()
}

// Restore points the sink back at the stray log. Call before unmounting.
func (s *Sink) Restore() {
	s.mu.Lock()
	s.fs, s.path = nil, ""
	s.mu.Unlock()
}

// Relocated reports whether output currently goes to the durable log.
func (s *Sink) Relocated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs != nil
}
