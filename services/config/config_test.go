package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picologger-go/errcode"
	"picologger-go/services/diag"
	"picologger-go/services/storage"
	"picologger-go/types"
)

func TestEmbeddedPicoDefault(t *testing.T) {
	c, err := Default("pico")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, c.TIM.Interval.D())
	assert.Equal(t, 2*time.Minute, c.TIM.Tolerance.D())
	assert.Equal(t, 25, c.TIM.SMS.Count)
	assert.Equal(t, 750*time.Millisecond, c.TIM.OW.Delay.D())
	assert.Equal(t, types.ADCExternal, c.SEN.SMS.Loc)
	require.NotNil(t, c.HW.EADC)
	assert.Equal(t, 6, c.HW.EADC.SDA)
	assert.Equal(t, 21, c.HW.Switch.PWR)
	assert.Equal(t, 15, c.HW.Switch.FN)
	assert.Equal(t, "/sd/picologger.log", c.Log.Path)

	_, err = Default("nope")
	assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))
}

func TestDefaultsFillSparseDocument(t *testing.T) {
	c, err := Decode([]byte(`{"tim": {"interval": 600000}}`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, c.TIM.Interval.D())
	assert.Equal(t, 7, c.TIM.BAT.Count)
	assert.Equal(t, types.ADCInternal, c.SYS.BAT.Loc)
	assert.Equal(t, 4.2, c.SYS.BAT.VMax)
	assert.Equal(t, "INFO", c.Log.Level)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"short interval":   `{"tim": {"interval": "500ms"}}`,
		"tolerance":        `{"tim": {"interval": "1m", "delta_interval": "2m"}}`,
		"bad pin":          `{"hw": {"switch": {"pwr": 40}}}`,
		"sms channel":      `{"sen": {"sms": {"loc": "INT", "channels": [{"ch": 9}]}}}`,
		"missing eadc":     `{"sen": {"sms": {"loc": "ADS1115"}}}`,
		"not json":         `{`,
		"bad duration str": `{"tim": {"interval": "fortnight"}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(doc))
			assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))
		})
	}
}

func TestServicePersistAndLoad(t *testing.T) {
	fs := storage.NewMem()
	s := NewService(fs, diag.Discard())

	ok, err := s.Exists()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Load()
	assert.Equal(t, errcode.StorageUnavailable, errcode.Of(err))

	want, err := s.Persist("pico")
	require.NoError(t, err)
	ok, _ = s.Exists()
	assert.True(t, ok)

	got, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLookupOverride(t *testing.T) {
	old := EmbeddedConfigLookup
	EmbeddedConfigLookup = func(string) ([]byte, bool) { return []byte(`{"name": "bench"}`), true }
	t.Cleanup(func() { EmbeddedConfigLookup = old })

	c, err := Default("any")
	require.NoError(t, err)
	assert.Equal(t, "bench", c.Name)
}

func TestEmbeddedMustBeObject(t *testing.T) {
	old := EmbeddedConfigLookup
	t.Cleanup(func() { EmbeddedConfigLookup = old })

	for name, doc := range map[string]string{
		"array":    `[1, 2]`,
		"string":   `"pico"`,
		"trailing": `{"name": "bench"} {}`,
		"broken":   `{"name": `,
	} {
		t.Run(name, func(t *testing.T) {
			EmbeddedConfigLookup = func(string) ([]byte, bool) { return []byte(doc), true }
			_, err := Default("any")
			assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))

			fs := storage.NewMem()
			_, err = NewService(fs, diag.Discard()).Persist("any")
			assert.Equal(t, errcode.InvalidConfig, errcode.Of(err))
			ok, _ := fs.Exists(Path)
			assert.False(t, ok, "nothing persisted")
		})
	}

	EmbeddedConfigLookup = func(string) ([]byte, bool) { return []byte(`[1, 2]`), true }
	_, err := Default("any")
	assert.Contains(t, err.Error(), "not a JSON object")
}
