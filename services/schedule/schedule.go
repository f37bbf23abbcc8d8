// Package schedule reconstructs the logger's slot schedule on every boot from
// the cache directory and decides how long to suspend between cycles.
package schedule

import (
	"log/slog"
	"time"

	"picologger-go/errcode"
	"picologger-go/services/storage"
	"picologger-go/types"
	"picologger-go/x/mathx"
	"picologger-go/x/strconvx"
	"picologger-go/x/strx"
	"picologger-go/x/timex"
)

// Cache file names.
const (
	MarkerFile   = "LOGIC.RESET"
	CurrentFile  = "CUR.TIM"
	PreviousFile = "PRV.TIM"
	CycleFile    = "EXE.TIM"
)

const DefaultDir = "/.cache"

// ResetTag is the single byte stored in the marker naming why it was set.
type ResetTag byte

const (
	TagCacheUnreadable ResetTag = 'c'
	TagHistoryGap      ResetTag = 'g'
	// TagClockUnsynced: a cycle ended without reading the RTC, so nothing
	// it slept for can be tied to a slot.
	TagClockUnsynced ResetTag = 'u'
)

// Path is the terminal reconstruction state of a boot.
type Path uint8

const (
	FreshStart Path = iota
	NormalWake
	LogicResetRequested
)

func (p Path) String() string {
	switch p {
	case FreshStart:
		return "fresh_start"
	case NormalWake:
		return "normal_wake"
	default:
		return "logic_reset_requested"
	}
}

type Config struct {
	Interval  time.Duration
	Tolerance time.Duration
	// DefaultMargin is the wake margin when no cycle time is cached, and
	// the floor for persisted cycle times.
	DefaultMargin time.Duration
	// Epoch aligns slots. Zero means the Unix epoch.
	Epoch time.Time
	Dir   string
}

type State struct {
	Current  time.Time
	Previous time.Time // zero when unknown
	Next     time.Time

	Interval      time.Duration
	Tolerance     time.Duration
	WakeMargin    time.Duration
	MeasuredCycle time.Duration // zero when none cached

	Path       Path
	PowerReset bool
	Drift      bool
	LogicReset bool
}

type Scheduler struct {
	cfg Config
	fs  storage.FS
	now func() time.Time
	log *slog.Logger
	st  State
}

// New returns a Scheduler over the cache directory on fs. now supplies the
// synchronised working clock. The wake margin is seeded from the cached
// cycle time before any reconstruction.
func New(cfg Config, fs storage.FS, now func() time.Time, log *slog.Logger) *Scheduler {
	if cfg.Dir == "" {
		cfg.Dir = DefaultDir
	}
	if cfg.Epoch.IsZero() {
		cfg.Epoch = time.Unix(0, 0).UTC()
	}
	s := &Scheduler{cfg: cfg, fs: fs, now: now, log: log}
	s.seed()
	return s
}

// seed resets the state to the configured values and the cached cycle time.
func (s *Scheduler) seed() {
	s.st = State{
		Interval:   s.cfg.Interval,
		Tolerance:  s.cfg.Tolerance,
		WakeMargin: s.cfg.DefaultMargin,
	}
	if c, err := s.readCycle(); err == nil {
		s.st.MeasuredCycle = c
		s.st.WakeMargin = margin(c)
	} else if !storage.IsNotExist(err) {
		s.log.Warn("cycle time unreadable", "err", err)
	}
}

func (s *Scheduler) State() State { return s.st }

func (s *Scheduler) file(name string) string { return storage.Join(s.cfg.Dir, name) }

// NextSlot is timex.NextSlot with this scheduler's epoch and interval.
func (s *Scheduler) NextSlot(now time.Time) time.Time {
	return timex.NextSlot(now, s.cfg.Epoch, s.cfg.Interval)
}

// ---- marker ----

// ConsumeLogicReset reports whether the marker is present and removes it.
// Any content, or none, counts as set.
func (s *Scheduler) ConsumeLogicReset() (bool, error) {
	name := s.file(MarkerFile)
	ok, err := s.fs.Exists(name)
	if err != nil {
		return false, errcode.Wrap(errcode.StorageUnavailable, "schedule.marker", err)
	}
	if !ok {
		return false, nil
	}
	if b, err := s.fs.ReadFile(name); err == nil && len(b) > 0 {
		s.log.Info("logic reset marker", "tag", string(b[:1]))
	}
	if err := s.fs.Remove(name); err != nil && !storage.IsNotExist(err) {
		return true, errcode.Wrap(errcode.StorageUnavailable, "schedule.marker", err)
	}
	return true, nil
}

// flag persists the marker. The returned error always carries
// LogicInconsistency; a failed write is kept as the cause.
func (s *Scheduler) flag(tag ResetTag, msg string) error {
	s.st.Path = LogicResetRequested
	if err := s.writeMarker(tag); err != nil {
		return &errcode.E{C: errcode.LogicInconsistency, Op: "schedule.reconstruct", Msg: msg + "; marker not written", Err: err}
	}
	return errcode.New(errcode.LogicInconsistency, "schedule.reconstruct", msg)
}

func (s *Scheduler) writeMarker(tag ResetTag) error {
	return s.fs.WriteFile(s.file(MarkerFile), []byte{byte(tag)})
}

// RequestFresh leaves the marker so the next boot takes the fresh path.
func (s *Scheduler) RequestFresh(tag ResetTag) error {
	if err := s.writeMarker(tag); err != nil {
		return errcode.Wrap(errcode.StorageUnavailable, "schedule.marker", err)
	}
	s.log.Warn("next boot starts fresh", "tag", string(rune(tag)))
	return nil
}

// ---- cache files ----

func (s *Scheduler) readTime(name string) (time.Time, error) {
	b, err := s.fs.ReadFile(s.file(name))
	if err != nil {
		return time.Time{}, err
	}
	return timex.Parse(strx.FirstLine(b))
}

func (s *Scheduler) readCycle() (time.Duration, error) {
	b, err := s.fs.ReadFile(s.file(CycleFile))
	if err != nil {
		return 0, err
	}
	ms, err := strconvx.ParseInt(strx.FirstLine(b), 10, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(ms) * time.Millisecond, nil
}

// margin derives the wake margin from a cached cycle time: +10%.
func margin(cycle time.Duration) time.Duration {
	return cycle * 11 / 10
}

// ---- reconstruction ----

// Reconstruct rebuilds the schedule for this boot. A deep-sleep wake without
// a consumed marker reads the cached slots; anything else starts fresh from
// the working clock. On an untrusted cache the marker is written and the
// error carries errcode.LogicInconsistency.
func (s *Scheduler) Reconstruct(reason types.BootReason, logicReset bool) (State, error) {
	now := s.now()
	s.seed()
	s.st.PowerReset = reason == types.BootHardReset
	s.st.LogicReset = logicReset

	if reason != types.BootDeepSleepWake || logicReset {
		s.fresh(now)
		return s.st, nil
	}
	err := s.normal(now)
	return s.st, err
}

func (s *Scheduler) fresh(now time.Time) {
	ivl := s.st.Interval
	s.st.Path = FreshStart
	s.st.Current = now
	s.st.Next = s.NextSlot(now)
	if absDur(now.Sub(s.st.Next.Add(-ivl))) > s.st.Tolerance {
		s.st.Drift = true
	}
	// continuity only
	if prv, err := s.readTime(PreviousFile); err == nil {
		s.st.Previous = prv
	}
	s.log.Info("schedule fresh start",
		"now", timex.Format(now), "next", timex.Format(s.st.Next),
		"power_reset", s.st.PowerReset, "logic_reset", s.st.LogicReset, "drift", s.st.Drift)
}

func (s *Scheduler) normal(now time.Time) error {
	ivl, m := s.st.Interval, s.st.WakeMargin
	cur, err := s.readTime(CurrentFile)
	if err != nil {
		s.log.Error("current slot unreadable", "err", err)
		return s.flag(TagCacheUnreadable, "cached slots unreadable")
	}
	prv, err := s.readTime(PreviousFile)
	if err != nil {
		s.log.Error("previous slot unreadable", "err", err)
		return s.flag(TagCacheUnreadable, "cached slots unreadable")
	}
	s.st.Path = NormalWake
	s.st.Current, s.st.Previous = cur, prv
	s.st.Next = cur.Add(ivl)

	if !prv.Equal(cur.Add(-ivl)) {
		if Untrusted(now, cur, prv, s.st.Next, m) {
			s.log.Error("schedule history gap",
				"now", timex.Format(now), "current", timex.Format(cur), "previous", timex.Format(prv))
			return s.flag(TagHistoryGap, "history gap outside sanity window")
		}
		s.log.Warn("schedule history gap accepted", "current", timex.Format(cur), "previous", timex.Format(prv))
	}
	if absDur(now.Sub(cur)) > s.st.Tolerance {
		s.st.Drift = true
		s.log.Warn("wake drift above tolerance", "now", timex.Format(now), "slot", timex.Format(cur))
	}
	return nil
}

// Untrusted is the history-gap sanity check. The three thresholds are kept
// exactly: now+m > next, now+3m < current, now < previous.
func Untrusted(now, current, previous, next time.Time, m time.Duration) bool {
	return now.Add(m).After(next) ||
		now.Add(3*m).Before(current) ||
		now.Before(previous)
}

// ---- suspend and update ----

// NextWakeDelay returns how long to suspend so that waking precedes Next by
// the wake margin. Never less than 1ms.
func (s *Scheduler) NextWakeDelay(now time.Time) time.Duration {
	if s.st.Next.IsZero() || s.st.Next.Before(now) {
		s.st.Next = s.NextSlot(now)
	}
	return mathx.Max(s.st.Next.Sub(now)-s.st.WakeMargin, time.Millisecond)
}

// SaveNext makes the persisted current slot name Next, the slot the coming
// suspend wakes for. After a completed cycle it already does. A failed cycle,
// or one whose Next moved in NextWakeDelay, leaves it behind, and the next
// wake would record under a stale slot. Reports whether it wrote.
func (s *Scheduler) SaveNext() (bool, error) {
	if s.st.Next.IsZero() {
		return false, nil
	}
	if cur, err := s.readTime(CurrentFile); err == nil && cur.Equal(s.st.Next) {
		return false, nil
	}
	if err := s.fs.WriteFile(s.file(CurrentFile), []byte(timex.Format(s.st.Next)+"\n")); err != nil {
		return false, errcode.Wrap(errcode.StorageUnavailable, "schedule.save", err)
	}
	s.log.Warn("current slot moved to wake slot", "slot", timex.Format(s.st.Next))
	return true, nil
}

// Update moves the persisted schedule one slot forward and caches the cycle
// time (never below the default margin). The next slot is the first one that
// still leaves a full wake margin after now, or follows Current when the
// cycle finished ahead of its own slot. The in-memory Current keeps this
// cycle's slot; the wake margin is refreshed so the same boot's suspend
// already accounts for it.
func (s *Scheduler) Update(now time.Time, measured time.Duration) error {
	const op = "schedule.update"
	cycle := mathx.Max(measured, s.cfg.DefaultMargin)
	m := margin(cycle.Truncate(time.Millisecond))
	base := now.Add(m)
	if s.st.Current.After(base) {
		base = s.st.Current
	}
	next := s.NextSlot(base)
	if err := s.fs.WriteFile(s.file(CurrentFile), []byte(timex.Format(next)+"\n")); err != nil {
		return errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	if err := s.fs.WriteFile(s.file(PreviousFile), []byte(timex.Format(s.st.Current)+"\n")); err != nil {
		return errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	if err := s.fs.WriteFile(s.file(CycleFile), []byte(strconvx.FormatInt(cycle.Milliseconds(), 10)+"\n")); err != nil {
		return errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	s.st.Next = next
	s.st.MeasuredCycle = cycle
	s.st.WakeMargin = m
	s.log.Info("schedule updated", "next", timex.Format(next), "cycle_ms", cycle.Milliseconds())
	return nil
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
