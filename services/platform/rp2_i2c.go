//go:build rp2040

package platform

import (
	"machine"
	"time"

	"tinygo.org/x/drivers"

	"picologger-go/errcode"
	"picologger-go/types"
)

// i2cTimeout bounds enqueue and completion of one transfer.
const i2cTimeout = 250 * time.Millisecond

// request posted to the per-bus worker
type i2cReq struct {
	addr uint16
	w, r []byte
	done chan error // buffered(1); worker replies best-effort
}

// i2cOwner hosts the single worker goroutine for one bus. It is started by
// Activate and stopped by Release, which also floats the pins.
type i2cOwner struct {
	hw   *machine.I2C
	cfg  types.I2CConfig
	reqs chan i2cReq
	quit chan struct{}
	up   bool
}

func newI2COwner(cfg types.I2CConfig) *i2cOwner {
	hw := machine.I2C0
	if cfg.ID == 1 {
		hw = machine.I2C1
	}
	return &i2cOwner{hw: hw, cfg: cfg}
}

func (o *i2cOwner) start() error {
	if o.up {
		return nil
	}
	sda := machine.Pin(o.cfg.SDA)
	scl := machine.Pin(o.cfg.SCL)
	if err := o.hw.Configure(machine.I2CConfig{
		SCL:       scl,
		SDA:       sda,
		Frequency: o.cfg.Hz,
	}); err != nil {
		return err
	}
	o.reqs = make(chan i2cReq, 16)
	o.quit = make(chan struct{})
	o.up = true
	go o.loop(o.reqs, o.quit)
	return nil
}

func (o *i2cOwner) loop(reqs <-chan i2cReq, quit <-chan struct{}) {
	for {
		select {
		case req := <-reqs:
			err := o.hw.Tx(req.addr, req.w, req.r)
			// best-effort reply; do not block the worker
			select {
			case req.done <- err:
			default:
			}
		case <-quit:
			return
		}
	}
}

func (o *i2cOwner) stop() error {
	if !o.up {
		return nil
	}
	close(o.quit)
	o.up = false
	floatPins(o.cfg.SDA, o.cfg.SCL)
	return nil
}

// bus adapts the owner to tinygo.org/x/drivers.I2C.
func (o *i2cOwner) bus() drivers.I2C { return &driversI2C{o: o, timeout: i2cTimeout} }

// driversI2C posts a request and enforces a per-call timeout.
type driversI2C struct {
	o       *i2cOwner
	timeout time.Duration
}

// Ensure compile-time conformance with drivers.I2C
var _ drivers.I2C = (*driversI2C)(nil)

func (d *driversI2C) Tx(addr uint16, w, r []byte) error {
	if !d.o.up {
		return errcode.New(errcode.PeripheralUnavailable, "i2c.tx", "bus not started")
	}
	req := i2cReq{addr: addr, w: w, r: r, done: make(chan error, 1)}

	t := time.NewTimer(d.timeout)
	select {
	case d.o.reqs <- req:
		if !t.Stop() {
			<-t.C
		}
	case <-t.C:
		return errcode.Busy
	}

	t = time.NewTimer(d.timeout)
	defer t.Stop()
	select {
	case err := <-req.done:
		return err
	case <-t.C:
		return errcode.Timeout
	}
}
