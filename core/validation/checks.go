package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"t2i_backend/backends"
)

// ErrEmptyPath is returned by the path checks for "".
var ErrEmptyPath = errors.New("path cannot be empty")

// CheckWritableDir creates dir if needed and proves it accepts new files.
func CheckWritableDir(dir string) error {
	if dir == "" {
		return ErrEmptyPath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".write-check-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// CheckDirExists returns an error unless path names an existing directory.
func CheckDirExists(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("directory not found: %s", path)
		}
		return fmt.Errorf("error checking %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is a file, not a directory: %s", path)
	}
	return nil
}

// BackendsFileSummary counts the entries of a backends file by type.
type BackendsFileSummary struct {
	Path    string
	Missing bool
	ByType  map[string]int
	Unknown []string
}

// Total is the number of entries in the file.
func (s BackendsFileSummary) Total() int {
	n := 0
	for _, c := range s.ByType {
		n += c
	}
	return n
}

// String renders "2 sdapi, 1 openai" style counts in type order.
func (s BackendsFileSummary) String() string {
	if s.Total() == 0 {
		return "no backends"
	}
	types := make([]string, 0, len(s.ByType))
	for t := range s.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%d %s", s.ByType[t], t))
	}
	return strings.Join(parts, ", ")
}

// CheckBackendsFile parses path without constructing any backend. Types not
// known to registry are listed in Unknown. A missing file sets Missing.
func CheckBackendsFile(path string, registry *backends.Registry) (BackendsFileSummary, error) {
	summary := BackendsFileSummary{Path: path, ByType: map[string]int{}}
	if path == "" {
		return summary, ErrEmptyPath
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if errors.Is(err, fs.ErrNotExist) {
		summary.Missing = true
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("read %s: %w", path, err)
	}

	cfg, err := backends.ParseFileConfig(data)
	if err != nil {
		return summary, err
	}
	for _, b := range cfg.Backends {
		summary.ByType[b.Type]++
		if registry != nil {
			if _, ok := registry.Type(b.Type); !ok {
				summary.Unknown = append(summary.Unknown, b.Type)
			}
		}
	}
	return summary, nil
}
