package storage

import (
	"errors"
	"sync"
)

// ErrUnmounted is returned by a Mount with nothing attached.
var ErrUnmounted = errors.New("storage: volume not mounted")

// Mount is a stable FS handle for a volume that comes and goes. Calls are
// forwarded to the attached FS and fail with ErrUnmounted otherwise.
type Mount struct {
	mu sync.RWMutex
	fs FS
}

func (m *Mount) Attach(fs FS) {
	m.mu.Lock()
	m.fs = fs
	m.mu.Unlock()
}

func (m *Mount) Detach() { m.Attach(nil) }

func (m *Mount) Attached() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fs != nil
}

func (m *Mount) get() (FS, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fs == nil {
		return nil, ErrUnmounted
	}
	return m.fs, nil
}

func (m *Mount) ReadFile(name string) ([]byte, error) {
	fs, err := m.get()
	if err != nil {
		return nil, err
	}
	return fs.ReadFile(name)
}

func (m *Mount) WriteFile(name string, data []byte) error {
	fs, err := m.get()
	if err != nil {
		return err
	}
	return fs.WriteFile(name, data)
}

func (m *Mount) AppendFile(name string, data []byte) error {
	fs, err := m.get()
	if err != nil {
		return err
	}
	return fs.AppendFile(name, data)
}

func (m *Mount) Remove(name string) error {
	fs, err := m.get()
	if err != nil {
		return err
	}
	return fs.Remove(name)
}

func (m *Mount) Exists(name string) (bool, error) {
	fs, err := m.get()
	if err != nil {
		return false, err
	}
	return fs.Exists(name)
}

func (m *Mount) MkdirAll(dir string) error {
	fs, err := m.get()
	if err != nil {
		return err
	}
	return fs.MkdirAll(dir)
}
