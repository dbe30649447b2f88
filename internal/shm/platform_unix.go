//go:build linux || darwin

package shm

import (
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
	"golang.org/x/sys/unix"
)

// CreateRegion creates a new named region of the given size with exclusive
// semantics: it fails if a region of the same name already exists.
func CreateRegion(name string, size int) (*Region, error) {
	path := SegmentPath(name)
	if !canCreateOnDevShm(uint64(size), path) {
		return nil, fmt.Errorf("create region %s: %w", name, unix.ENOSPC)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("create region %s: %w", name, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("truncate region %s to %d bytes: %w", name, size, err)
	}
	data, err := mmapFile(f, size)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return nil, err
	}
	return &Region{Data: data, File: f, Path: path, Name: name}, nil
}

// OpenRegion maps an existing named region. Open-only semantics: a missing
// region is an error, never created implicitly.
func OpenRegion(name string) (*Region, error) {
	path := SegmentPath(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open region %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat region %s: %w", name, err)
	}
	data, err := mmapFile(f, int(info.Size()))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Region{Data: data, File: f, Path: path, Name: name}, nil
}

// UnmapRegion unmaps the region and closes its file. The backing object
// stays in the system until Unlink.
func UnmapRegion(r *Region) error {
	if r == nil {
		return nil
	}
	var firstErr error
	if r.Data != nil {
		if err := unix.Munmap(r.Data); err != nil {
			firstErr = fmt.Errorf("munmap %s: %w", r.Name, err)
		}
		r.Data = nil
	}
	if r.File != nil {
		if err := r.File.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.File = nil
	}
	return firstErr
}

// Unlink removes the backing object of a named region.
func Unlink(name string) error {
	if err := os.Remove(SegmentPath(name)); err != nil {
		return fmt.Errorf("unlink region %s: %w", name, err)
	}
	return nil
}

func mmapFile(f *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}
	return data, nil
}

// canCreateOnDevShm reports whether /dev/shm has room for a region of the
// given size. Paths outside /dev/shm are always allowed; tmpfs exhaustion
// there produces SIGBUS on first touch rather than a clean error, so it is
// checked up front.
func canCreateOnDevShm(size uint64, path string) bool {
	if !strings.HasPrefix(path, "/dev/shm") {
		return true
	}
	usage, err := disk.Usage("/dev/shm")
	if err != nil {
		return true
	}
	return usage.Free >= size
}
