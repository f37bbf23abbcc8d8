package lifecycle

import (
	"picologger-go/errcode"
	"picologger-go/services/config"
	"picologger-go/services/schedule"
	"picologger-go/services/status"
	"picologger-go/types"
)

// Setup is the one-time path for a board without persisted configuration:
// set the RTC if it lost time, lay out directories, reset the working-copy
// streams, validate each group once and persist a first schedule. It ends
// Deactivated (or Failed); teardown always runs.
func (o *Orchestrator) Setup() error {
	if err := o.expect("lifecycle.setup", Uninitialized); err != nil {
		return err
	}
	o.start = o.d.Board.Ticks()
	o.d.LED.On(status.Cyan)
	o.d.Log.Info("setup")

	err := o.setup()
	if err != nil {
		err = o.fail(err)
	}
	if derr := o.Deactivate(); err == nil {
		err = derr
	}
	return err
}

func (o *Orchestrator) setup() error {
	d := o.d
	err := o.acquire(func() error {
		if d.RTC.Valid() {
			return o.syncFromRTC()
		}
		now := d.Board.Now()
		d.Log.Warn("rtc time invalid, setting from working clock", "now", now.Format("2006-01-02T15:04:05"))
		if err := d.RTC.Set(now); err != nil {
			return err
		}
		o.synced = true
		return nil
	})
	if err != nil {
		return err
	}

	for _, dir := range []string{config.Dir, schedule.DefaultDir} {
		if err := d.Cache.MkdirAll(dir); err != nil {
			return errcode.Wrap(errcode.StorageUnavailable, "lifecycle.setup", err)
		}
	}
	if err := d.Volume.FS().MkdirAll(RecordsDir); err != nil {
		return errcode.Wrap(errcode.StorageUnavailable, "lifecycle.setup", err)
	}

	for _, g := range o.groups {
		if err := o.rec.Prepare(g, true); err != nil {
			return err
		}
	}
	for _, g := range o.groups {
		d.LED.On(GroupColor(g.Name))
		if _, err := o.agg.Collect(g); err != nil {
			return err
		}
	}

	// setup always starts fresh; an old marker must not outlive it
	set, err := o.sched.ConsumeLogicReset()
	if err != nil {
		d.Log.Warn("logic reset marker", "err", err)
	}
	if _, err := o.sched.Reconstruct(types.BootOther, set); err != nil {
		return err
	}
	if err := o.sched.Update(d.Board.Now(), d.Board.Ticks()-o.start); err != nil {
		return err
	}
	d.LED.Flash(status.Green)
	return nil
}
