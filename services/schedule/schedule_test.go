package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picologger-go/errcode"
	"picologger-go/services/diag"
	"picologger-go/services/storage"
	"picologger-go/types"
	"picologger-go/x/timex"
)

// ---- helpers ----

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Set(t time.Time)         { c.t = t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

var midnight = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(h, m, s int) time.Time {
	return midnight.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

func cfg() Config {
	return Config{
		Interval:      15 * time.Minute,
		Tolerance:     2 * time.Minute,
		DefaultMargin: time.Second,
	}
}

func newSched(t *testing.T, fs storage.FS, clk *clock) *Scheduler {
	t.Helper()
	return New(cfg(), fs, clk.Now, diag.Discard())
}

func cache(t *testing.T) *storage.Mem {
	t.Helper()
	m := storage.NewMem()
	require.NoError(t, m.MkdirAll(DefaultDir))
	return m
}

func put(t *testing.T, fs storage.FS, name, v string) {
	t.Helper()
	require.NoError(t, fs.WriteFile(storage.Join(DefaultDir, name), []byte(v+"\n")))
}

// ---- fresh start ----

func TestFreshStartFromHardReset(t *testing.T) {
	fs := cache(t)
	put(t, fs, PreviousFile, "2023-12-31T23:45:00")
	clk := &clock{at(0, 3, 0)}
	s := newSched(t, fs, clk)

	st, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)
	assert.Equal(t, FreshStart, st.Path)
	assert.True(t, st.PowerReset)
	assert.Equal(t, at(0, 3, 0), st.Current)
	assert.Equal(t, at(0, 15, 0), st.Next)
	assert.Equal(t, at(-1, 45, 0), st.Previous, "previous read for continuity")
	assert.True(t, st.Drift, "3m past the slot exceeds 2m tolerance")
	assert.Equal(t, time.Second, st.WakeMargin)
}

func TestFreshStartWhenMarkerConsumed(t *testing.T) {
	fs := cache(t)
	put(t, fs, CurrentFile, "2024-01-01T00:15:00")
	put(t, fs, PreviousFile, "2024-01-01T00:00:00")
	put(t, fs, MarkerFile, "g")
	clk := &clock{at(0, 14, 59)}
	s := newSched(t, fs, clk)

	set, err := s.ConsumeLogicReset()
	require.NoError(t, err)
	require.True(t, set)
	ok, _ := fs.Exists(storage.Join(DefaultDir, MarkerFile))
	assert.False(t, ok, "marker is read once")

	st, err := s.Reconstruct(types.BootDeepSleepWake, set)
	require.NoError(t, err)
	assert.Equal(t, FreshStart, st.Path)
	assert.True(t, st.LogicReset)
	assert.False(t, st.PowerReset)
	assert.Equal(t, at(0, 15, 0), st.Next)

	set, err = s.ConsumeLogicReset()
	require.NoError(t, err)
	assert.False(t, set)
}

func TestEmptyMarkerCounts(t *testing.T) {
	fs := cache(t)
	require.NoError(t, fs.WriteFile(storage.Join(DefaultDir, MarkerFile), nil))
	set, err := newSched(t, fs, &clock{midnight}).ConsumeLogicReset()
	require.NoError(t, err)
	assert.True(t, set)
}

func TestOtherBootReasonIsFresh(t *testing.T) {
	fs := cache(t)
	st, err := newSched(t, fs, &clock{at(1, 0, 0)}).Reconstruct(types.BootOther, false)
	require.NoError(t, err)
	assert.Equal(t, FreshStart, st.Path)
	assert.False(t, st.Drift)
	assert.True(t, st.Previous.IsZero())
}

// ---- normal wake ----

func TestRoundTrip(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 0, 0)}
	s := newSched(t, fs, clk)
	_, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)
	clk.Advance(1500 * time.Millisecond)
	require.NoError(t, s.Update(clk.Now(), 1500*time.Millisecond))

	clk.Set(at(0, 14, 58))
	first, err := newSched(t, fs, clk).Reconstruct(types.BootDeepSleepWake, false)
	require.NoError(t, err)
	assert.Equal(t, NormalWake, first.Path)
	assert.Equal(t, at(0, 15, 0), first.Current)
	assert.Equal(t, at(0, 0, 0), first.Previous)
	assert.Equal(t, at(0, 30, 0), first.Next)
	assert.Equal(t, 1500*time.Millisecond, first.MeasuredCycle)
	assert.Equal(t, 1650*time.Millisecond, first.WakeMargin)

	second, err := newSched(t, fs, clk).Reconstruct(types.BootDeepSleepWake, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestUnreadableCacheRequestsReset(t *testing.T) {
	fs := cache(t)
	put(t, fs, CurrentFile, "2024-01-01T00:15:00")
	// PRV.TIM missing
	st, err := newSched(t, fs, &clock{at(0, 14, 58)}).Reconstruct(types.BootDeepSleepWake, false)
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.LogicInconsistency))
	assert.Equal(t, LogicResetRequested, st.Path)

	b, err := fs.ReadFile(storage.Join(DefaultDir, MarkerFile))
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(TagCacheUnreadable)}, b)
}

func TestGarbledCacheRequestsReset(t *testing.T) {
	fs := cache(t)
	put(t, fs, CurrentFile, "not a time")
	put(t, fs, PreviousFile, "2024-01-01T00:00:00")
	_, err := newSched(t, fs, &clock{at(0, 14, 58)}).Reconstruct(types.BootDeepSleepWake, false)
	assert.Equal(t, errcode.LogicInconsistency, errcode.Of(err))
}

func TestCorruptedHistoryOutsideWindow(t *testing.T) {
	fs := cache(t)
	put(t, fs, CurrentFile, "2024-01-01T00:15:00")
	put(t, fs, PreviousFile, "2023-12-31T10:00:00")
	s := newSched(t, fs, &clock{at(5, 0, 0)})

	_, err := s.Reconstruct(types.BootDeepSleepWake, false)
	require.Error(t, err)
	assert.Equal(t, errcode.LogicInconsistency, errcode.Of(err))

	b, err := fs.ReadFile(storage.Join(DefaultDir, MarkerFile))
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(TagHistoryGap)}, b)

	set, err := s.ConsumeLogicReset()
	require.NoError(t, err)
	assert.True(t, set, "next boot sees the marker")
}

func TestHistoryGapInsideWindowAccepted(t *testing.T) {
	fs := cache(t)
	put(t, fs, CurrentFile, "2024-01-01T00:15:00")
	put(t, fs, PreviousFile, "2023-12-31T23:45:00")
	put(t, fs, CycleFile, "1200")
	st, err := newSched(t, fs, &clock{at(0, 14, 59)}).Reconstruct(types.BootDeepSleepWake, false)
	require.NoError(t, err)
	assert.Equal(t, NormalWake, st.Path)
	assert.Equal(t, at(0, 30, 0), st.Next)
	assert.False(t, st.Drift)
}

func TestMarkerWriteFailureStillInconsistent(t *testing.T) {
	fs := cache(t)
	fs.Fail(storage.OpWrite, storage.Join(DefaultDir, MarkerFile), nil)
	_, err := newSched(t, fs, &clock{at(0, 14, 58)}).Reconstruct(types.BootDeepSleepWake, false)
	require.Error(t, err)
	assert.Equal(t, errcode.LogicInconsistency, errcode.Of(err))
	assert.True(t, errors.Is(err, storage.ErrInjected))
}

func TestDriftOnNormalWake(t *testing.T) {
	fs := cache(t)
	put(t, fs, CurrentFile, "2024-01-01T00:15:00")
	put(t, fs, PreviousFile, "2024-01-01T00:00:00")
	st, err := newSched(t, fs, &clock{at(0, 12, 0)}).Reconstruct(types.BootDeepSleepWake, false)
	require.NoError(t, err)
	assert.True(t, st.Drift)
}

// Each threshold is strict; equality is trusted.
func TestUntrustedBoundaries(t *testing.T) {
	cur := at(0, 15, 0)
	next := at(0, 30, 0)
	prv := at(0, 0, 0)
	m := 10 * time.Second

	assert.False(t, Untrusted(next.Add(-m), cur, prv, next, m), "now+m == next")
	assert.True(t, Untrusted(next.Add(-m+time.Millisecond), cur, prv, next, m))

	assert.False(t, Untrusted(cur.Add(-3*m), cur, prv, next, m), "now+3m == current")
	assert.True(t, Untrusted(cur.Add(-3*m-time.Millisecond), cur, prv, next, m))

	assert.False(t, Untrusted(cur, cur, cur, next, m), "now == previous")
	assert.True(t, Untrusted(cur, cur, cur.Add(time.Millisecond), next, m))
}

// ---- delay and update ----

func TestNextWakeDelayNeverBelowOneMillisecond(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 0, 0)}
	s := newSched(t, fs, clk)
	_, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)

	next := s.State().Next
	for _, back := range []time.Duration{0, time.Millisecond, 500 * time.Millisecond, time.Second, 2 * time.Second, 14 * time.Minute} {
		d := s.NextWakeDelay(next.Add(-back))
		assert.GreaterOrEqual(t, d, time.Millisecond, "back=%v", back)
	}
}

func TestNextWakeDelayRecomputesPastNext(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 0, 0)}
	s := newSched(t, fs, clk)
	_, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)

	d := s.NextWakeDelay(at(0, 20, 0))
	assert.Equal(t, at(0, 30, 0), s.State().Next)
	assert.Equal(t, 10*time.Minute-time.Second, d)
}

func TestEndToEndCycle(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 0, 0)}
	s := newSched(t, fs, clk)

	st, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)
	require.Equal(t, FreshStart, st.Path)
	require.Equal(t, at(0, 15, 0), st.Next)

	clk.Advance(1200 * time.Millisecond)
	require.NoError(t, s.Update(clk.Now(), 1200*time.Millisecond))
	assert.Equal(t, 1320*time.Millisecond, s.State().WakeMargin)
	assert.Equal(t, at(0, 0, 0), s.State().Current, "records stay tagged with this slot")

	d := s.NextWakeDelay(at(0, 14, 0))
	assert.Equal(t, 58680*time.Millisecond, d)

	b, err := fs.ReadFile(storage.Join(DefaultDir, CycleFile))
	require.NoError(t, err)
	assert.Equal(t, "1200\n", string(b))
	b, _ = fs.ReadFile(storage.Join(DefaultDir, CurrentFile))
	assert.Equal(t, timex.Format(at(0, 15, 0))+"\n", string(b))

	// next boot
	clk.Set(at(0, 14, 58))
	st, err = newSched(t, fs, clk).Reconstruct(types.BootDeepSleepWake, false)
	require.NoError(t, err)
	assert.Equal(t, 1320*time.Millisecond, st.WakeMargin)
}

func TestUpdateClampsToDefaultMargin(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 0, 0)}
	s := newSched(t, fs, clk)
	_, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)
	require.NoError(t, s.Update(clk.Now(), 300*time.Millisecond))
	b, _ := fs.ReadFile(storage.Join(DefaultDir, CycleFile))
	assert.Equal(t, "1000\n", string(b))
}

func TestUpdateStorageFailure(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 0, 0)}
	s := newSched(t, fs, clk)
	_, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)
	fs.Down(errors.New("flash busy"))
	err = s.Update(clk.Now(), time.Second)
	assert.Equal(t, errcode.StorageUnavailable, errcode.Of(err))
}

func TestUpdateAfterEarlyWakeAdvancesPastCurrent(t *testing.T) {
	fs := cache(t)
	put(t, fs, CurrentFile, "2024-01-01T00:15:00")
	put(t, fs, PreviousFile, "2024-01-01T00:00:00")
	clk := &clock{at(0, 14, 58)}
	s := newSched(t, fs, clk)

	_, err := s.Reconstruct(types.BootDeepSleepWake, false)
	require.NoError(t, err)
	clk.Advance(1500 * time.Millisecond) // still ahead of the 00:15 slot
	require.NoError(t, s.Update(clk.Now(), 1500*time.Millisecond))

	st := s.State()
	assert.Equal(t, at(0, 30, 0), st.Next)
	assert.Equal(t, at(0, 15, 0), st.Current)
	b, err := fs.ReadFile(storage.Join(DefaultDir, CurrentFile))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:30:00\n", string(b))
	b, err = fs.ReadFile(storage.Join(DefaultDir, PreviousFile))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:15:00\n", string(b))
}

func TestUpdateNearSlotEdgeSkipsToReachableSlot(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 14, 58)}
	s := newSched(t, fs, clk)
	_, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)

	// 00:15 is still ahead but closer than the refreshed margin
	clk.Advance(1500 * time.Millisecond)
	require.NoError(t, s.Update(clk.Now(), 1500*time.Millisecond))
	assert.Equal(t, at(0, 30, 0), s.State().Next)
	b, err := fs.ReadFile(storage.Join(DefaultDir, CurrentFile))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:30:00\n", string(b))

	d := s.NextWakeDelay(clk.Now())
	assert.Equal(t, 15*time.Minute+500*time.Millisecond-1650*time.Millisecond, d)
	assert.Equal(t, at(0, 30, 0), s.State().Next, "delay keeps the persisted slot")
}

func TestNewSeedsMarginFromCachedCycle(t *testing.T) {
	fs := cache(t)
	put(t, fs, CycleFile, "1200")
	s := newSched(t, fs, &clock{at(0, 14, 0)})

	// no reconstruction, as when activation fails early
	assert.Equal(t, 1320*time.Millisecond, s.State().WakeMargin)
	assert.Equal(t, 1200*time.Millisecond, s.State().MeasuredCycle)
	assert.Equal(t, 58680*time.Millisecond, s.NextWakeDelay(at(0, 14, 0)))

	s = newSched(t, cache(t), &clock{at(0, 14, 0)})
	assert.Equal(t, time.Second, s.State().WakeMargin)
	assert.Equal(t, 15*time.Minute, s.State().Interval)
}

func TestSaveNextPersistsMovedSlot(t *testing.T) {
	fs := cache(t)
	clk := &clock{at(0, 0, 0)}
	s := newSched(t, fs, clk)
	_, err := s.Reconstruct(types.BootHardReset, false)
	require.NoError(t, err)
	require.NoError(t, s.Update(clk.Now(), time.Second))

	wrote, err := s.SaveNext()
	require.NoError(t, err)
	assert.False(t, wrote, "update already saved 00:15")

	s.NextWakeDelay(at(0, 20, 0))
	wrote, err = s.SaveNext()
	require.NoError(t, err)
	assert.True(t, wrote)
	b, err := fs.ReadFile(storage.Join(DefaultDir, CurrentFile))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01T00:30:00\n", string(b))

	fs.Down(errors.New("flash busy"))
	s.NextWakeDelay(at(0, 40, 0))
	_, err = s.SaveNext()
	assert.Equal(t, errcode.StorageUnavailable, errcode.Of(err))
}

func TestSaveNextWithoutSlotIsNoop(t *testing.T) {
	fs := cache(t)
	s := newSched(t, fs, &clock{at(0, 0, 0)})
	wrote, err := s.SaveNext()
	require.NoError(t, err)
	assert.False(t, wrote)
	ok, _ := fs.Exists(storage.Join(DefaultDir, CurrentFile))
	assert.False(t, ok)
}

func TestRequestFreshLeavesTaggedMarker(t *testing.T) {
	fs := cache(t)
	s := newSched(t, fs, &clock{at(0, 0, 0)})
	require.NoError(t, s.RequestFresh(TagClockUnsynced))
	b, err := fs.ReadFile(storage.Join(DefaultDir, MarkerFile))
	require.NoError(t, err)
	assert.Equal(t, "u", string(b))

	set, err := s.ConsumeLogicReset()
	require.NoError(t, err)
	assert.True(t, set)

	fs.Down(errors.New("flash busy"))
	assert.Equal(t, errcode.StorageUnavailable, errcode.Of(s.RequestFresh(TagClockUnsynced)))
}
