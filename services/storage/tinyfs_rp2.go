//go:build rp2040

package storage

import (
	"io"
	"os"
	"path"
	"strings"

	"tinygo.org/x/tinyfs"
)

// TinyFS adapts a mounted tinyfs filesystem (littlefs on flash, FAT on SD).
// Prefix is stripped from names before they reach the filesystem, so the SD
// card can be addressed as "/sd/...".
type TinyFS struct {
	FS     tinyfs.Filesystem
	Prefix string
}

func (t TinyFS) name(n string) string {
	n = Clean(n)
	if t.Prefix != "" && (n == t.Prefix || strings.HasPrefix(n, t.Prefix+"/")) {
		n = Clean(n[len(t.Prefix):])
	}
	return n
}

func (t TinyFS) ReadFile(name string) ([]byte, error) {
	f, err := t.FS.Open(t.name(name))
	if err != nil {
		return nil, ErrNotExist
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (t TinyFS) write(name string, flags int, data []byte) error {
	f, err := t.FS.OpenFile(name, flags)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (t TinyFS) WriteFile(name string, data []byte) error {
	n := t.name(name)
	tmp := TempName(n)
	if err := t.write(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, data); err != nil {
		return err
	}
	// littlefs rename replaces; FAT does not.
	_ = t.FS.Remove(n)
	return t.FS.Rename(tmp, n)
}

func (t TinyFS) AppendFile(name string, data []byte) error {
	return t.write(t.name(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, data)
}

func (t TinyFS) Remove(name string) error { return t.FS.Remove(t.name(name)) }

func (t TinyFS) Exists(name string) (bool, error) {
	if _, err := t.FS.Stat(t.name(name)); err != nil {
		return false, nil
	}
	return true, nil
}

func (t TinyFS) MkdirAll(dir string) error {
	dir = t.name(dir)
	if dir == "/" {
		return nil
	}
	if err := t.MkdirAll(path.Dir(dir)); err != nil {
		return err
	}
	if ok, _ := t.Exists(dir); ok {
		return nil
	}
	return t.FS.Mkdir(dir, 0o777)
}
