// Package storage is the small-file and append-stream layer used by the
// scheduler cache (internal flash) and the record streams (SD card).
package storage

import (
	"errors"
	"io/fs"
	"path"
	"strings"
)

// FS is the subset of filesystem behaviour the logger needs. Names are
// slash-separated and absolute ("/sd/data/sms.csv").
type FS interface {
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces name atomically (write temp, then rename).
	WriteFile(name string, data []byte) error
	AppendFile(name string, data []byte) error
	Remove(name string) error
	Exists(name string) (bool, error)
	MkdirAll(dir string) error
}

// ErrNotExist is returned for missing files. It matches fs.ErrNotExist.
var ErrNotExist = fs.ErrNotExist

// IsNotExist reports whether err means a missing file.
func IsNotExist(err error) bool { return errors.Is(err, fs.ErrNotExist) }

// TempName is the sibling used by atomic writes.
func TempName(name string) string { return name + ".tmp" }

// Clean normalises a name to an absolute slash path.
func Clean(name string) string {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return path.Clean(name)
}

// Join is path.Join for storage names.
func Join(elem ...string) string { return Clean(path.Join(elem...)) }
