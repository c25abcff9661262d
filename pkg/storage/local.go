package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalDisk keeps objects as files under one directory. Names may carry one
// folder ("qr/x.png"); which folders are served statically is up to the
// router. Local URLs never expire.
type LocalDisk struct {
	dir       string
	urlPrefix string
}

// NewLocalDisk returns a local object directory served at urlPrefix.
func NewLocalDisk(dir, urlPrefix string) *LocalDisk {
	if urlPrefix == "" {
		urlPrefix = "/uploads"
	}
	return &LocalDisk{dir: dir, urlPrefix: urlPrefix}
}

// Dir returns the directory holding the files.
func (l *LocalDisk) Dir() string { return l.dir }

// URLPrefix returns the same-origin path the files are served from.
func (l *LocalDisk) URLPrefix() string { return l.urlPrefix }

// Save writes data under name, creating the directory if needed.
func (l *LocalDisk) Save(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(l.file(name)), 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}
	if err := os.WriteFile(l.file(name), data, 0o644); err != nil {
		return fmt.Errorf("write upload: %w", err)
	}
	return nil
}

// URL returns the static path for name.
func (l *LocalDisk) URL(name string) string {
	return path.Join(l.urlPrefix, clean(name))
}

// FolderDir returns the directory holding folder, for static routes.
func (l *LocalDisk) FolderDir(folder string) string {
	return filepath.Join(l.dir, filepath.FromSlash(clean(folder)))
}

// FolderURL returns the URL prefix of folder.
func (l *LocalDisk) FolderURL(folder string) string {
	return path.Join(l.urlPrefix, clean(folder))
}

// Open returns the file for name. Caller must close it.
func (l *LocalDisk) Open(name string) (io.ReadCloser, error) {
	return os.Open(l.file(name))
}

// Remove deletes the file for name. A missing file is not an error.
func (l *LocalDisk) Remove(name string) error {
	if err := os.Remove(l.file(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// file confines name to the upload directory.
func (l *LocalDisk) file(name string) string {
	return filepath.Join(l.dir, filepath.FromSlash(clean(name)))
}

// clean strips leading slashes and any ".." so name stays inside the directory.
func clean(name string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(name)), "/")
}
