package types

// BootReason is read once per boot from hardware state.
type BootReason uint8

const (
	BootOther BootReason = iota
	BootHardReset
	BootDeepSleepWake
)

func (r BootReason) String() string {
	switch r {
	case BootHardReset:
		return "hard_reset"
	case BootDeepSleepWake:
		return "deep_sleep_wake"
	default:
		return "other"
	}
}

// SleepMode selects the low-power suspend used between cycles.
type SleepMode uint8

const (
	// SleepDeep loses all volatile state; the next boot reconstructs.
	SleepDeep SleepMode = iota
	// SleepLight retains volatile state; short pauses only.
	SleepLight
)

func (m SleepMode) String() string {
	if m == SleepLight {
		return "light"
	}
	return "deep"
}
