package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Byte units used by FormatBytes.
const (
	BytesPerKB int64 = 1024
	BytesPerMB int64 = 1024 * BytesPerKB
	BytesPerGB int64 = 1024 * BytesPerMB
	BytesPerTB int64 = 1024 * BytesPerGB
)

// DefaultMinFreeSpace is the free space required under the output directory.
const DefaultMinFreeSpace = 512 * BytesPerMB

// DiskSpaceInfo describes the filesystem holding Path.
type DiskSpaceInfo struct {
	Path  string
	Total int64
	Free  int64
}

// Used is Total minus Free.
func (d DiskSpaceInfo) Used() int64 { return d.Total - d.Free }

// UsedPercent is in the range 0 to 100.
func (d DiskSpaceInfo) UsedPercent() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.Used()) / float64(d.Total) * 100
}

// DiskSpaceError is returned when fewer than Required bytes are free.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Path, FormatBytes(e.Required), FormatBytes(e.Available))
}

// GetDiskSpace reports the filesystem containing path. A path that does not
// exist yet is resolved to its nearest existing ancestor.
func GetDiskSpace(path string) (DiskSpaceInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return DiskSpaceInfo{}, fmt.Errorf("cannot resolve %s: %w", path, err)
	}

	dir := abs
	for {
		info, err := os.Stat(dir)
		if err == nil {
			if !info.IsDir() {
				dir = filepath.Dir(dir)
			}
			break
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return DiskSpaceInfo{}, fmt.Errorf("cannot access %s: %w", dir, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return DiskSpaceInfo{}, fmt.Errorf("cannot access %s: %w", path, err)
		}
		dir = parent
	}

	total, free, err := getDiskSpace(dir)
	if err != nil {
		return DiskSpaceInfo{}, fmt.Errorf("failed to get disk space for %s: %w", dir, err)
	}
	return DiskSpaceInfo{Path: dir, Total: total, Free: free}, nil
}

// CheckDiskSpace returns a *DiskSpaceError if less than required bytes are
// free under path.
func CheckDiskSpace(path string, required int64) (DiskSpaceInfo, error) {
	info, err := GetDiskSpace(path)
	if err != nil {
		return info, err
	}
	if info.Free < required {
		return info, &DiskSpaceError{Path: info.Path, Required: required, Available: info.Free}
	}
	return info, nil
}

// FormatBytes renders n with binary units, e.g. "1.50 KB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	switch {
	case n >= BytesPerTB:
		return fmt.Sprintf("%.2f TB", float64(n)/float64(BytesPerTB))
	case n >= BytesPerGB:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(BytesPerGB))
	case n >= BytesPerMB:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(BytesPerMB))
	case n >= BytesPerKB:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(BytesPerKB))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
