package storage

import (
	"os"
	"path/filepath"
)

// Dir is an FS rooted at a host directory. Used by the host simulator.
type Dir struct{ Root string }

func (d Dir) host(name string) string {
	return filepath.Join(d.Root, filepath.FromSlash(Clean(name)))
}

func (d Dir) ReadFile(name string) ([]byte, error) { return os.ReadFile(d.host(name)) }

func (d Dir) WriteFile(name string, data []byte) error {
	p := d.host(name)
	tmp := TempName(p)
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (d Dir) AppendFile(name string, data []byte) error {
	f, err := os.OpenFile(d.host(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (d Dir) Remove(name string) error { return os.Remove(d.host(name)) }

func (d Dir) Exists(name string) (bool, error) {
	_, err := os.Stat(d.host(name))
	if err == nil {
		return true, nil
	}
	if IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (d Dir) MkdirAll(dir string) error { return os.MkdirAll(d.host(dir), 0o755) }
