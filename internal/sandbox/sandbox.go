// Package sandbox pins a directory and performs every filesystem operation
// relative to it. Paths are checked lexically first, then opened through an
// os.Root so that symlinks swapped in after the check cannot lead outside.
package sandbox

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscape is returned when a path would resolve outside the root.
var ErrEscape = errors.New("sandbox: path escapes root")

// Sandbox is immutable after New and safe for concurrent use.
type Sandbox struct {
	root string
	dir  *os.Root
}

// New creates root if needed and pins its absolute, symlink-free form.
func New(root string) (*Sandbox, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create sandbox root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve sandbox root: %w", err)
	}
	dir, err := os.OpenRoot(resolved)
	if err != nil {
		return nil, fmt.Errorf("open sandbox root: %w", err)
	}
	return &Sandbox{root: resolved, dir: dir}, nil
}

// Root returns the pinned absolute root.
func (s *Sandbox) Root() string { return s.root }

func (s *Sandbox) Close() error { return s.dir.Close() }

// Resolve returns the slash-separated path of p relative to the root. p may
// be relative to the root or absolute. The root itself resolves to ".".
func (s *Sandbox) Resolve(p string) (string, error) {
	if p == "" || strings.ContainsRune(p, 0) {
		return "", ErrEscape
	}
	candidate := p
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(s.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	if candidate != s.root && !strings.HasPrefix(candidate, s.root+string(filepath.Separator)) {
		return "", ErrEscape
	}
	rel, err := filepath.Rel(s.root, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrEscape
	}
	return filepath.ToSlash(rel), nil
}

// Abs resolves p and returns its absolute path under the root.
func (s *Sandbox) Abs(p string) (string, error) {
	rel, err := s.Resolve(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// Open opens a regular file for reading.
func (s *Sandbox) Open(p string) (*os.File, error) {
	rel, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := s.dir.Open(rel)
	if err != nil {
		return nil, s.wrap(rel, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: rel, Err: fs.ErrNotExist}
	}
	return f, nil
}

// ReadFile returns the contents of a regular file.
func (s *Sandbox) ReadFile(p string) ([]byte, error) {
	f, err := s.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// CreateExclusive creates a new file for writing and fails if it exists.
func (s *Sandbox) CreateExclusive(p string) (*os.File, error) {
	rel, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	if rel == "." {
		return nil, ErrEscape
	}
	f, err := s.dir.OpenFile(rel, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return nil, s.wrap(rel, err)
	}
	return f, nil
}

func (s *Sandbox) MkdirAll(p string) error {
	rel, err := s.Resolve(p)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	return s.wrap(rel, s.dir.MkdirAll(rel, 0o750))
}

// Remove deletes a file. The root itself cannot be removed.
func (s *Sandbox) Remove(p string) error {
	rel, err := s.Resolve(p)
	if err != nil {
		return err
	}
	if rel == "." {
		return ErrEscape
	}
	return s.wrap(rel, s.dir.Remove(rel))
}

// Stat does not follow a final symlink.
func (s *Sandbox) Stat(p string) (fs.FileInfo, error) {
	rel, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	info, err := s.dir.Lstat(rel)
	return info, s.wrap(rel, err)
}

func (s *Sandbox) ReadDir(p string) ([]fs.DirEntry, error) {
	rel, err := s.Resolve(p)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(s.dir.FS(), rel)
	return entries, s.wrap(rel, err)
}

// wrap reports os.Root refusals to traverse outside the root as ErrEscape.
// os.Root does not export its escape error, so its text is matched first;
// any other failure on a path whose existing prefix links outside the root
// is classified as an escape too.
func (s *Sandbox) wrap(rel string, err error) error {
	if err == nil {
		return nil
	}
	var pe *fs.PathError
	if errors.As(err, &pe) && strings.Contains(pe.Err.Error(), "escapes") {
		return fmt.Errorf("%w: %s", ErrEscape, pe.Path)
	}
	if s.linksOutside(rel) {
		return fmt.Errorf("%w: %s", ErrEscape, rel)
	}
	return err
}

// linksOutside reports whether the longest existing prefix of rel resolves
// through symlinks to a location outside the root. It only classifies
// errors; access control stays with os.Root.
func (s *Sandbox) linksOutside(rel string) bool {
	p := filepath.Join(s.root, filepath.FromSlash(rel))
	for p != s.root && strings.HasPrefix(p, s.root) {
		if resolved, err := filepath.EvalSymlinks(p); err == nil {
			return resolved != s.root && !strings.HasPrefix(resolved, s.root+string(filepath.Separator))
		}
		p = filepath.Dir(p)
	}
	return false
}
