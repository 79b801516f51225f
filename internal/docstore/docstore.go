// Package docstore manages the raw document directory that feeds the index:
// upload, listing and deletion of plain-text files with an extension
// allow-list.
package docstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultDir is the raw document directory used when none is configured.
const DefaultDir = "raw_data"

// DefaultExtensions are the file types accepted for ingestion.
var DefaultExtensions = []string{"md", "txt"}

var (
	// ErrInvalidName is returned for empty names, names with path
	// separators, and names that escape the store directory.
	ErrInvalidName = errors.New("docstore: invalid file name")

	// ErrDisallowedType is returned for extensions outside the allow-list.
	ErrDisallowedType = errors.New("docstore: file type not allowed")

	// ErrEmpty is returned when an upload has no content.
	ErrEmpty = errors.New("docstore: empty file")

	// ErrNotFound is returned when deleting a file that does not exist.
	ErrNotFound = errors.New("docstore: file not found")
)

// FileInfo describes one stored document.
type FileInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
	Type         string    `json:"type"`
}

// Store is a flat directory of documents.
type Store struct {
	root string
	exts map[string]bool
}

// New returns a Store rooted at dir accepting the given extensions (without
// the dot, case-insensitive). Empty values select the defaults.
func New(dir string, extensions []string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(e), "."))] = true
	}
	return &Store{root: filepath.Clean(dir), exts: exts}
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Extensions returns the allow-list, sorted.
func (s *Store) Extensions() []string {
	out := make([]string, 0, len(s.exts))
	for e := range s.exts {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Allowed reports whether name has an accepted extension.
func (s *Store) Allowed(name string) bool {
	return s.exts[Extension(name)]
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// Exists reports whether the store directory exists.
func (s *Store) Exists() bool {
	fi, err := os.Stat(s.root)
	return err == nil && fi.IsDir()
}

// path validates name and returns its location inside the store.
func (s *Store) path(name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	target, err := confineToDir(s.root, filepath.Join(s.root, name))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return target, nil
}

// confineToDir verifies that target resolves to a path inside root after
// cleaning both.
func confineToDir(root, target string) (string, error) {
	root = filepath.Clean(root)
	target = filepath.Clean(target)
	if !strings.HasPrefix(target+string(filepath.Separator), root+string(filepath.Separator)) || target == root {
		return "", fmt.Errorf("path is outside the store directory")
	}
	return target, nil
}

// Save writes r to name, replacing any existing file. The content is staged
// in a temporary file and renamed into place so readers never see a partial
// document.
func (s *Store) Save(name string, r io.Reader) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}
	if !s.Allowed(name) {
		return fmt.Errorf("%w: %s (allowed: %s)", ErrDisallowedType, name, strings.Join(s.Extensions(), ", "))
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("docstore: create %s: %w", s.root, err)
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return fmt.Errorf("docstore: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("docstore: write %s: %w", name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("docstore: save %s: %w", name, err)
	}
	return nil
}

// List returns the regular files in the store directory, sorted by name.
// A missing directory yields an empty list.
func (s *Store) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", s.root, err)
	}

	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() || strings.HasPrefix(e.Name(), ".upload-") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // removed between ReadDir and Info
		}
		files = append(files, FileInfo{
			Name:         e.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
			Type:         Extension(e.Name()),
		})
	}
	return files, nil
}

// Delete removes name from the store.
func (s *Store) Delete(name string) error {
	target, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("docstore: delete %s: %w", name, err)
	}
	return nil
}

// ExtensionsFromEnv parses a comma-separated extension list such as
// "md,txt". Empty input returns nil so New falls back to the defaults.
func ExtensionsFromEnv(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
