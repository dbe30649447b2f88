// Package shm contains platform helpers for creating, opening and mapping
// named shared memory regions. The portable managed-segment layer lives in
// pkg/shm.
package shm

import (
	"errors"
	"os"
	"path/filepath"
)

// ErrNotSupported is returned on platforms without a shared memory backend.
var ErrNotSupported = errors.New("shared memory is not supported on this platform")

// Region is a memory-mapped named shared memory region.
type Region struct {
	Data []byte
	File *os.File
	Path string
	Name string
}

// SegmentPath returns the backing file path for a named region. /dev/shm is
// preferred when present; elsewhere the region lives in the temp directory.
func SegmentPath(name string) string {
	if devShmUsable() {
		return filepath.Join("/dev/shm", name)
	}
	return filepath.Join(os.TempDir(), name)
}

func devShmUsable() bool {
	info, err := os.Stat("/dev/shm")
	return err == nil && info.IsDir()
}

// Exists reports whether a named region's backing file is present.
func Exists(name string) bool {
	_, err := os.Stat(SegmentPath(name))
	return err == nil
}
