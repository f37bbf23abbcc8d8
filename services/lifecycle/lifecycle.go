// Package lifecycle drives one boot of the logger: power and mount the
// peripherals, rebuild the schedule, record both sensor groups, move the
// schedule forward, release everything in reverse order and suspend.
package lifecycle

import (
	"errors"
	"time"

	"picologger-go/errcode"
	"picologger-go/services/aggregate"
	"picologger-go/services/schedule"
	"picologger-go/services/sensors"
	"picologger-go/services/status"
	"picologger-go/types"
	"picologger-go/x/mathx"
)

type Phase uint8

const (
	Uninitialized Phase = iota
	Activated
	Recorded
	Updated
	Deactivated
	Asleep
	Failed
)

func (p Phase) String() string {
	switch p {
	case Uninitialized:
		return "uninitialized"
	case Activated:
		return "activated"
	case Recorded:
		return "recorded"
	case Updated:
		return "updated"
	case Deactivated:
		return "deactivated"
	case Asleep:
		return "asleep"
	default:
		return "failed"
	}
}

// Directory layout.
const (
	DataDir    = "/sd/data"
	RecordsDir = "/sd/data/records"
	StrayLog   = "/stray.log"
)

// RailSettle is the pause after enabling the rail before touching buses.
const RailSettle = 100 * time.Millisecond

type Orchestrator struct {
	d     Deps
	phase Phase
	start time.Duration

	// acquired this boot
	synced    bool
	mounted   bool
	relocated bool
	rtcUp     bool
	afeUp     bool

	resetRequested bool
	err            error

	sched  *schedule.Scheduler
	agg    *aggregate.Aggregator
	rec    *aggregate.Recorder
	groups []aggregate.Group
}

func New(d Deps) *Orchestrator {
	tim := d.Config.TIM
	o := &Orchestrator{d: d}
	o.sched = schedule.New(schedule.Config{
		Interval:      tim.Interval.D(),
		Tolerance:     tim.Tolerance.D(),
		DefaultMargin: tim.WakeHaste.D(),
	}, d.Cache, d.Board.Now, d.Log)
	o.agg = aggregate.New(d.Board.Pause, d.Log)
	o.rec = aggregate.NewRecorder(d.Volume.FS(), RecordsDir, DataDir, d.Log)
	return o
}

func (o *Orchestrator) Phase() Phase              { return o.phase }
func (o *Orchestrator) Err() error                { return o.err }
func (o *Orchestrator) ResetRequested() bool      { return o.resetRequested }
func (o *Orchestrator) Schedule() schedule.State  { return o.sched.State() }
func (o *Orchestrator) Groups() []aggregate.Group { return o.groups }

// GroupColor is the indicator colour while a group is collected.
func GroupColor(name string) status.Color {
	switch name {
	case sensors.GroupSen:
		return status.Blue
	case sensors.GroupSys:
		return status.Magenta
	default:
		return status.Cyan
	}
}

// fail moves to Failed, holds red and logs. It returns err.
func (o *Orchestrator) fail(err error) error {
	o.phase = Failed
	o.err = err
	o.d.LED.On(status.Red)
	o.d.Log.Error("cycle failed", "code", errcode.Of(err), "err", err)
	return err
}

func (o *Orchestrator) expect(op string, p Phase) error {
	if o.phase == p {
		return nil
	}
	return errcode.New(errcode.InvalidState, op, "phase is "+o.phase.String()+", want "+p.String())
}

// ---- shared acquisition ----

// acquire runs the common power, mount, clock and front-end steps.
// setClock decides how RTC and working clock are reconciled.
func (o *Orchestrator) acquire(setClock func() error) error {
	d := o.d
	if d.Rail.Enabled() {
		d.Log.Warn("power rail already enabled")
	} else {
		d.Rail.Set(true)
		d.Board.Pause(RailSettle)
	}

	if err := d.Volume.Mount(); err != nil {
		return errcode.Wrap(errcode.StorageUnavailable, "lifecycle.mount", err)
	}
	o.mounted = true

	if d.Sink != nil {
		if err := d.Sink.Relocate(d.Volume.FS(), d.Config.Log.Path); err != nil {
			d.Log.Warn("stray log not moved", "err", err)
		}
		o.relocated = true
	}

	if err := d.RTC.Activate(); err != nil {
		return errcode.Wrap(errcode.PeripheralUnavailable, "lifecycle.rtc", err)
	}
	o.rtcUp = true
	if err := setClock(); err != nil {
		return errcode.Wrap(errcode.PeripheralUnavailable, "lifecycle.rtc", err)
	}

	if d.AFE != nil {
		if err := d.AFE.Activate(); err != nil {
			return errcode.Wrap(errcode.PeripheralUnavailable, "lifecycle.afe", err)
		}
		o.afeUp = true
	}

	hw := sensors.Hardware{ADC: d.Board.ADC, Probes: d.Board.Probes(), Pause: d.Board.Pause}
	if d.AFE != nil {
		hw.EADC = d.AFE
	}
	groups, err := sensors.Build(d.Config, hw, d.Log)
	if err != nil {
		return err
	}
	o.groups = groups
	return nil
}

func (o *Orchestrator) syncFromRTC() error {
	if !o.d.RTC.Valid() {
		o.d.Log.Warn("rtc oscillator stopped since last set; wall time suspect")
	}
	t, err := o.d.RTC.Sync(o.d.Board.SetClock)
	if err != nil {
		return err
	}
	o.synced = true
	o.d.Log.Info("clock synced", "now", t.Format(time.DateTime))
	return nil
}

// ---- steady state ----

// Activate acquires every resource in order and rebuilds the schedule.
// A distrusted schedule sets ResetRequested.
func (o *Orchestrator) Activate() error {
	if err := o.expect("lifecycle.activate", Uninitialized); err != nil {
		return err
	}
	o.start = o.d.Board.Ticks()
	o.d.LED.On(status.Yellow)
	o.d.Log.Info("activate", "boot", o.d.Board.BootReason())

	if err := o.acquire(o.syncFromRTC); err != nil {
		return o.fail(err)
	}

	set, err := o.sched.ConsumeLogicReset()
	if err != nil {
		o.d.Log.Warn("logic reset marker", "err", err)
	}
	if _, err := o.sched.Reconstruct(o.d.Board.BootReason(), set); err != nil {
		if errcode.Is(err, errcode.LogicInconsistency) {
			o.resetRequested = true
		}
		return o.fail(err)
	}

	if err := o.d.Volume.FS().MkdirAll(RecordsDir); err != nil {
		return o.fail(errcode.Wrap(errcode.StorageUnavailable, "lifecycle.activate", err))
	}
	for _, g := range o.groups {
		if err := o.rec.Prepare(g, false); err != nil {
			return o.fail(err)
		}
	}
	for _, g := range o.groups {
		if _, err := o.agg.Prime(g); err != nil {
			o.d.Log.Warn("prime", "group", g.Name, "err", err)
		}
	}
	o.phase = Activated
	o.d.LED.Flash(status.Green)
	return nil
}

// Record collects and writes each group, tagged with the current slot.
func (o *Orchestrator) Record() error {
	if err := o.expect("lifecycle.record", Activated); err != nil {
		return err
	}
	slot := o.sched.State().Current
	for _, g := range o.groups {
		c := GroupColor(g.Name)
		o.d.LED.On(c)
		rg, err := o.agg.Collect(g)
		if err != nil {
			return o.fail(err)
		}
		if err := o.rec.Write(rg, slot); err != nil {
			return o.fail(err)
		}
		o.d.LED.DualFlash(status.Green, c)
	}
	o.phase = Recorded
	return nil
}

// Update persists the next slot and the time this cycle took.
func (o *Orchestrator) Update() error {
	if err := o.expect("lifecycle.update", Recorded); err != nil {
		return err
	}
	o.d.LED.On(status.White)
	elapsed := o.d.Board.Ticks() - o.start
	if err := o.sched.Update(o.d.Board.Now(), elapsed); err != nil {
		return o.fail(err)
	}
	o.phase = Updated
	return nil
}

// Deactivate releases what this boot acquired, in reverse order, and turns
// the rail off. Every step runs; failures are joined.
func (o *Orchestrator) Deactivate() error {
	d := o.d
	if o.phase != Failed {
		d.LED.Flash(status.Orange)
	}
	var errs []error
	if o.rtcUp {
		if err := d.RTC.Release(); err != nil {
			errs = append(errs, err)
		}
		o.rtcUp = false
	}
	if o.afeUp {
		if err := d.AFE.Release(); err != nil {
			errs = append(errs, errcode.Wrap(errcode.PeripheralUnavailable, "lifecycle.afe", err))
		}
		o.afeUp = false
	}
	if o.relocated {
		d.Sink.Restore()
		o.relocated = false
	}
	if o.mounted {
		if err := d.Volume.Unmount(); err != nil {
			errs = append(errs, errcode.Wrap(errcode.StorageUnavailable, "lifecycle.unmount", err))
		}
		o.mounted = false
	}
	d.Rail.Set(false)

	err := errors.Join(errs...)
	if err != nil {
		d.Log.Error("teardown", "err", err)
	}
	if o.phase != Failed {
		o.phase = Deactivated
	}
	return err
}

// Sleep suspends until just before the next slot and makes the cache name
// that slot. If this boot never synced the working clock there is no slot to
// aim for: it sleeps one interval and leaves the marker so the next boot
// starts fresh.
func (o *Orchestrator) Sleep(mode types.SleepMode) time.Duration {
	var delay time.Duration
	if o.synced {
		delay = o.sched.NextWakeDelay(o.d.Board.Now())
		if _, err := o.sched.SaveNext(); err != nil {
			o.d.Log.Warn("wake slot not saved", "err", err)
		}
	} else {
		delay = mathx.Max(o.d.Config.TIM.Interval.D(), time.Minute)
		o.d.Log.Warn("clock never synced, sleeping one interval")
		if err := o.sched.RequestFresh(schedule.TagClockUnsynced); err != nil {
			o.d.Log.Warn("marker not written", "err", err)
		}
	}
	if o.phase != Failed {
		o.d.LED.Flash(status.DimRed)
		o.phase = Asleep
	}
	o.d.Log.Info("sleep", "mode", mode, "ms", delay.Milliseconds())
	o.d.Board.Suspend(mode, delay)
	return delay
}

// Run is one steady-state boot. Teardown always runs; a requested logic
// reset restarts the board instead of sleeping.
func (o *Orchestrator) Run(mode types.SleepMode) error {
	err := o.Activate()
	if err == nil {
		err = o.Record()
	}
	if err == nil {
		err = o.Update()
	}
	derr := o.Deactivate()
	if o.resetRequested {
		o.d.Log.Warn("logic reset requested, restarting")
		o.d.Board.Reset()
		return errors.Join(err, derr)
	}
	o.Sleep(mode)
	return errors.Join(err, derr)
}
