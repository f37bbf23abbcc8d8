package storage

import (
	"errors"
	"path"
	"sort"
	"strings"
	"sync"
)

// Op names an FS operation for fault injection on Mem.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpAppend Op = "append"
	OpRemove Op = "remove"
	OpStat   Op = "stat"
	OpMkdir  Op = "mkdir"
	OpRename Op = "rename"
)

// ErrInjected is the default fault returned by Mem.Fail.
var ErrInjected = errors.New("storage: injected fault")

// Mem is an in-memory FS used on the host and in tests. Faults can be
// injected per operation and name, or globally.
type Mem struct {
	mu     sync.Mutex
	files  map[string][]byte
	dirs   map[string]bool
	faults map[string]error
	down   error
}

func NewMem() *Mem {
	return &Mem{
		files:  make(map[string][]byte),
		dirs:   map[string]bool{"/": true},
		faults: make(map[string]error),
	}
}

func faultKey(op Op, name string) string { return string(op) + ":" + Clean(name) }

// Fail makes op on name return err (ErrInjected when nil) until Heal.
func (m *Mem) Fail(op Op, name string, err error) {
	if err == nil {
		err = ErrInjected
	}
	m.mu.Lock()
	m.faults[faultKey(op, name)] = err
	m.mu.Unlock()
}

// Down makes every operation fail with err; nil brings the FS back.
func (m *Mem) Down(err error) {
	m.mu.Lock()
	m.down = err
	m.mu.Unlock()
}

// Heal removes all injected faults.
func (m *Mem) Heal() {
	m.mu.Lock()
	m.faults = make(map[string]error)
	m.down = nil
	m.mu.Unlock()
}

// caller holds lock
func (m *Mem) fault(op Op, name string) error {
	if m.down != nil {
		return m.down
	}
	return m.faults[faultKey(op, name)]
}

func (m *Mem) ReadFile(name string) ([]byte, error) {
	name = Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpRead, name); err != nil {
		return nil, err
	}
	b, ok := m.files[name]
	if !ok {
		return nil, ErrNotExist
	}
	return append([]byte(nil), b...), nil
}

func (m *Mem) WriteFile(name string, data []byte) error {
	name = Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpWrite, name); err != nil {
		return err
	}
	if !m.dirs[path.Dir(name)] {
		return ErrNotExist
	}
	tmp := TempName(name)
	m.files[tmp] = append([]byte(nil), data...)
	if err := m.fault(OpRename, name); err != nil {
		// temp left behind, target untouched
		return err
	}
	m.files[name] = m.files[tmp]
	delete(m.files, tmp)
	return nil
}

func (m *Mem) AppendFile(name string, data []byte) error {
	name = Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpAppend, name); err != nil {
		return err
	}
	if !m.dirs[path.Dir(name)] {
		return ErrNotExist
	}
	m.files[name] = append(m.files[name], data...)
	return nil
}

func (m *Mem) Remove(name string) error {
	name = Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpRemove, name); err != nil {
		return err
	}
	if _, ok := m.files[name]; !ok {
		return ErrNotExist
	}
	delete(m.files, name)
	return nil
}

func (m *Mem) Exists(name string) (bool, error) {
	name = Clean(name)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpStat, name); err != nil {
		return false, err
	}
	_, f := m.files[name]
	return f || m.dirs[name], nil
}

func (m *Mem) MkdirAll(dir string) error {
	dir = Clean(dir)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault(OpMkdir, dir); err != nil {
		return err
	}
	for d := dir; ; d = path.Dir(d) {
		m.dirs[d] = true
		if d == "/" {
			return nil
		}
	}
}

// Names lists files under prefix, sorted. Test helper.
func (m *Mem) Names(prefix string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for n := range m.files {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}
