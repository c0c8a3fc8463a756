// Package storage keeps uploaded photo files on the local disk. Files are
// addressed by a path relative to the upload root, which is also the path
// they are served under.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidPath is returned for relative paths that escape the root.
var ErrInvalidPath = errors.New("storage: invalid path")

// Local stores files under Root.
type Local struct {
	Root string
	now  func() time.Time
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root: %w", err)
	}
	return &Local{Root: root, now: time.Now}, nil
}

// Save writes r to a new file named after the upload time, a random uuid
// and the sanitized original name, and returns its relative path.
func (l *Local) Save(ctx context.Context, originalName string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	t := l.now().UTC()
	rel := path.Join(t.Format("2006/01"),
		fmt.Sprintf("%s_%s_%s", t.Format("20060102T150405"), uuid.NewString(), sanitize(originalName)))

	full := filepath.Join(l.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("storage: create dir: %w", err)
	}
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("storage: close file: %w", err)
	}
	return rel, nil
}

// Remove deletes the file at relPath. A missing file yields an error that
// matches os.ErrNotExist.
func (l *Local) Remove(ctx context.Context, relPath string) error {
	full, err := l.resolve(relPath)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		return fmt.Errorf("storage: remove: %w", err)
	}
	return nil
}

// exists reports whether relPath names a stored file.
func (l *Local) exists(relPath string) bool {
	full, err := l.resolve(relPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

func (l *Local) resolve(relPath string) (string, error) {
	slashed := filepath.ToSlash(relPath)
	if slices.Contains(strings.Split(slashed, "/"), "..") {
		return "", ErrInvalidPath
	}
	clean := path.Clean("/" + slashed)
	if clean == "/" {
		return "", ErrInvalidPath
	}
	return filepath.Join(l.Root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// sanitize keeps letters, digits, dot, dash and underscore of the base
// name, collapses runs of dots and falls back to "photo".
func sanitize(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r == ' ':
			return '-'
		}
		return -1
	}, name)
	for strings.Contains(name, "..") {
		name = strings.ReplaceAll(name, "..", ".")
	}
	name = strings.Trim(name, ".")
	if len(name) > 100 {
		name = name[len(name)-100:]
	}
	if name == "" {
		return "photo"
	}
	return name
}
