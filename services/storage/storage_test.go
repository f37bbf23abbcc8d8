package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, fs FS) {
	t.Helper()
	require.NoError(t, fs.MkdirAll("/.cache"))

	_, err := fs.ReadFile("/.cache/CUR.TIM")
	assert.True(t, IsNotExist(err), "missing file: %v", err)

	require.NoError(t, fs.WriteFile("/.cache/CUR.TIM", []byte("a\n")))
	require.NoError(t, fs.WriteFile("/.cache/CUR.TIM", []byte("b\n")))
	b, err := fs.ReadFile("/.cache/CUR.TIM")
	require.NoError(t, err)
	assert.Equal(t, "b\n", string(b))

	ok, err := fs.Exists(TempName("/.cache/CUR.TIM"))
	require.NoError(t, err)
	assert.False(t, ok, "temp file must not survive a write")

	require.NoError(t, fs.AppendFile("/.cache/x.csv", []byte("h\n")))
	require.NoError(t, fs.AppendFile("/.cache/x.csv", []byte("r\n")))
	b, _ = fs.ReadFile("/.cache/x.csv")
	assert.Equal(t, "h\nr\n", string(b))

	require.NoError(t, fs.Remove("/.cache/x.csv"))
	ok, _ = fs.Exists("/.cache/x.csv")
	assert.False(t, ok)
	assert.True(t, IsNotExist(fs.Remove("/.cache/x.csv")))
}

func TestMem(t *testing.T) { exercise(t, NewMem()) }

func TestDir(t *testing.T) { exercise(t, Dir{Root: t.TempDir()}) }

func TestMount(t *testing.T) {
	var m Mount
	assert.False(t, m.Attached())
	assert.ErrorIs(t, m.MkdirAll("/sd"), ErrUnmounted)
	_, err := m.Exists("/sd")
	assert.ErrorIs(t, err, ErrUnmounted)

	m.Attach(NewMem())
	exercise(t, &m)

	m.Detach()
	assert.ErrorIs(t, m.AppendFile("/.cache/x", []byte("1")), ErrUnmounted)
}

func TestMemWriteNeedsDir(t *testing.T) {
	m := NewMem()
	assert.True(t, IsNotExist(m.WriteFile("/nope/a", nil)))
	assert.True(t, IsNotExist(m.AppendFile("/nope/a", nil)))
}

func TestMemFaults(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.MkdirAll("/c"))
	require.NoError(t, m.WriteFile("/c/f", []byte("old")))

	m.Fail(OpRename, "/c/f", nil)
	assert.ErrorIs(t, m.WriteFile("/c/f", []byte("new")), ErrInjected)
	b, err := m.ReadFile("/c/f")
	require.NoError(t, err)
	assert.Equal(t, "old", string(b), "interrupted write keeps old value")

	boom := errors.New("card gone")
	m.Down(boom)
	_, err = m.ReadFile("/c/f")
	assert.ErrorIs(t, err, boom)
	_, err = m.Exists("/c")
	assert.ErrorIs(t, err, boom)

	m.Heal()
	require.NoError(t, m.WriteFile("/c/f", []byte("new")))
	assert.Equal(t, []string{"/c/f"}, m.Names("/c/"), "temp removed once the write completes")
}

func TestClean(t *testing.T) {
	assert.Equal(t, "/sd/data", Clean("sd/data/"))
	assert.Equal(t, "/sd/data/records/a.csv", Join("/sd/data", "records", "a.csv"))
}
