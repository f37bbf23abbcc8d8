package picologger

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picologger-go/errcode"
	"picologger-go/services/config"
	"picologger-go/services/diag"
	"picologger-go/services/lifecycle"
	"picologger-go/services/platform"
	"picologger-go/services/storage"
	"picologger-go/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type rig struct {
	sim   *platform.Sim
	cache *storage.Mem
	card  *storage.Mem
	level *slog.LevelVar
	board *platform.SimBoard
	idled bool
}

func newRig(cfg platform.SimConfig) *rig {
	r := &rig{cache: storage.NewMem(), card: storage.NewMem(), level: new(slog.LevelVar)}
	r.sim = platform.NewSim(r.cache, r.card, cfg)
	return r
}

func (r *rig) boot(t *testing.T) (Result, error) {
	t.Helper()
	r.board = r.sim.Boot()
	sink := diag.NewSink(r.cache, lifecycle.StrayLog, nil)
	b := r.board
	return Boot(Env{
		Cache: r.cache,
		Sink:  sink,
		Level: r.level,
		Log:   diag.New(sink, r.level),
		Open: func(types.Config) (Hardware, error) {
			return Hardware{
				Board:   b,
				Rail:    b.Rail(),
				Volume:  b.Volume(),
				RTC:     b.RTC(),
				AFE:     b.AFE(),
				LED:     b.LED(),
				Enabled: b.Enabled,
			}, nil
		},
		Idle: func() { r.idled = true },
	})
}

func (r *rig) lastColour() string {
	log := r.board.LEDLog
	if len(log) == 0 {
		return ""
	}
	return log[len(log)-1]
}

func TestFirstBootRunsSetupThenCycles(t *testing.T) {
	r := newRig(platform.SimConfig{Probes: 1})

	res, err := r.boot(t)
	require.NoError(t, err)
	assert.Equal(t, Setup, res.Kind)
	assert.Equal(t, t0.Add(15*time.Minute), res.Schedule.Next)
	ok, err := r.cache.Exists(config.Path)
	require.NoError(t, err)
	assert.True(t, ok, "config persisted after setup")
	assert.True(t, r.board.Suspended)
	assert.Equal(t, types.SleepDeep, r.board.Mode)
	assert.Equal(t, slog.LevelInfo, r.level.Level())

	res, err = r.boot(t)
	require.NoError(t, err)
	assert.Equal(t, types.BootDeepSleepWake, r.board.BootReason())
	assert.Equal(t, Cycle, res.Kind)
	assert.Equal(t, lifecycle.Asleep, res.Phase)
	assert.Equal(t, t0.Add(15*time.Minute), res.Schedule.Current)
	assert.Equal(t, t0.Add(30*time.Minute), res.Schedule.Next)

	sms, err := r.card.ReadFile(lifecycle.DataDir + "/sms.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(sms), "timestamp,SM1,SM2,SM3\n"))
	assert.Contains(t, string(sms), "\n2024-01-01T00:15:00,")
}

func TestSetupFailureIsRetriedNextBoot(t *testing.T) {
	r := newRig(platform.SimConfig{})
	r.sim.Faults.Mount = errors.New("no card")

	res, err := r.boot(t)
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.StorageUnavailable))
	assert.Equal(t, Setup, res.Kind)
	assert.Equal(t, lifecycle.Failed, res.Phase)
	ok, _ := r.cache.Exists(config.Path)
	assert.False(t, ok, "config is only persisted by a successful setup")
	assert.True(t, r.board.Suspended)

	r.sim.Faults.Mount = nil
	res, err = r.boot(t)
	require.NoError(t, err)
	assert.Equal(t, Setup, res.Kind)
	ok, _ = r.cache.Exists(config.Path)
	assert.True(t, ok)
}

func TestDisabledSwitchIdles(t *testing.T) {
	r := newRig(platform.SimConfig{Disabled: true})

	res, err := r.boot(t)
	require.NoError(t, err)
	assert.Equal(t, Idle, res.Kind)
	assert.True(t, r.idled)
	assert.True(t, r.board.Rail().Enabled())
	assert.Equal(t, "white", r.lastColour())
	assert.False(t, r.board.Suspended)
}

func TestUnusableConfigHaltsAndSleeps(t *testing.T) {
	r := newRig(platform.SimConfig{})
	require.NoError(t, r.cache.MkdirAll(config.Dir))
	require.NoError(t, r.cache.WriteFile(config.Path, []byte("{not json")))

	res, err := r.boot(t)
	require.Error(t, err)
	assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))
	assert.Equal(t, Halted, res.Kind)
	assert.Equal(t, "red", r.lastColour())
	assert.True(t, r.board.Suspended)
	assert.Equal(t, FailSafeSleep, r.board.Slept)
}

func TestOpenFailureIsPeripheralUnavailable(t *testing.T) {
	cache := storage.NewMem()
	_, err := Boot(Env{
		Cache: cache,
		Log:   diag.Discard(),
		Open:  func(types.Config) (Hardware, error) { return Hardware{}, errors.New("spi") },
	})
	require.Error(t, err)
	assert.Equal(t, errcode.PeripheralUnavailable, errcode.Of(err))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "setup", Setup.String())
	assert.Equal(t, "cycle", Cycle.String())
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "halted", Halted.String())
}
