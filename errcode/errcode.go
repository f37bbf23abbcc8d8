package errcode

import "errors"

// Code is a stable, log-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK Code = "ok"

	// Bus or device init failed. Fatal for the cycle.
	PeripheralUnavailable Code = "peripheral_unavailable"
	// Mount, read or write failed. Fatal for the cycle.
	StorageUnavailable Code = "storage_unavailable"
	// Reconstructed schedule is not trusted; the device resets itself.
	LogicInconsistency Code = "logic_inconsistency"
	// Some samples of a channel failed. Never returned as a failure.
	PartialSampleLoss Code = "partial_sample_loss"
	// Every channel of every source in a collect call failed.
	TotalSampleLoss Code = "total_sample_loss"

	InvalidConfig Code = "invalid_config"
	InvalidState  Code = "invalid_state"

	// Bus worker queue full, or a transfer did not complete in time.
	Busy    Code = "busy"
	Timeout Code = "timeout"

	Error Code = "error" // generic fallback
)

// E keeps a Code together with the failing operation, a message and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// New returns an *E without a cause.
func New(c Code, op, msg string) error {
	return &E{C: c, Op: op, Msg: msg}
}

// Wrap returns an *E carrying err as its cause. A nil err yields nil.
func Wrap(c Code, op string, err error) error {
	if err == nil {
		return nil
	}
	return &E{C: c, Op: op, Err: err}
}

// Of extracts the outermost Code from an error chain, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	type coder interface{ Code() Code }
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}

// Is reports whether err carries code c anywhere in its chain.
func Is(err error, c Code) bool {
	for err != nil {
		switch v := err.(type) {
		case Code:
			if v == c {
				return true
			}
		case *E:
			if v.C == c {
				return true
			}
		}
		if j, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range j.Unwrap() {
				if Is(e, c) {
					return true
				}
			}
			return false
		}
		err = errors.Unwrap(err)
	}
	return false
}
