package shm

import (
	"bytes"
	"fmt"
	"sync/atomic"
)

// Name-to-object directory: a fixed table of entries between the header and
// the heap. The owner publishes objects; any attached process looks them up.
// The used flag is written last on publish and cleared first on unpublish,
// so a concurrent reader never observes a half-valid entry.

const (
	dirNameSize  = 64
	dirEntrySize = 88
)

type dirEntry struct {
	name [dirNameSize]byte
	off  uint64
	size uint64
	used uint32
	_    uint32
}

// Publish records an allocated object under the given name. Multiple entries
// with the same name are allowed; Find reports the multiplicity.
func (s *Segment) Publish(name string, off, size uint64) error {
	if len(name) >= dirNameSize {
		return fmt.Errorf("%w: %q is %d bytes, limit %d", ErrNameTooLong, name, len(name), dirNameSize-1)
	}
	for i := uint64(0); i < s.dirCap(); i++ {
		e := s.dirEntry(i)
		if atomic.LoadUint32(&e.used) != 0 {
			continue
		}
		for j := range e.name {
			e.name[j] = 0
		}
		copy(e.name[:], name)
		e.off = off
		e.size = size
		atomic.StoreUint32(&e.used, 1)
		return nil
	}
	return fmt.Errorf("%w: no slot for %q", ErrDirectoryFull, name)
}

// Unpublish removes every directory entry with the given name and reports
// whether any was removed. The objects themselves are not freed.
func (s *Segment) Unpublish(name string) bool {
	removed := false
	for i := uint64(0); i < s.dirCap(); i++ {
		e := s.dirEntry(i)
		if atomic.LoadUint32(&e.used) == 0 || !entryNameIs(e, name) {
			continue
		}
		atomic.StoreUint32(&e.used, 0)
		removed = true
	}
	return removed
}

// Find looks the name up in the directory. It returns the offset and size of
// the first match plus the total number of matches, mirroring a managed
// segment's find semantics: callers decide what multiplicity they accept.
func (s *Segment) Find(name string) (off, size uint64, matches int) {
	for i := uint64(0); i < s.dirCap(); i++ {
		e := s.dirEntry(i)
		if atomic.LoadUint32(&e.used) == 0 || !entryNameIs(e, name) {
			continue
		}
		if matches == 0 {
			off, size = e.off, e.size
		}
		matches++
	}
	return off, size, matches
}

func entryNameIs(e *dirEntry, name string) bool {
	n := bytes.IndexByte(e.name[:], 0)
	if n < 0 {
		n = dirNameSize
	}
	return string(e.name[:n]) == name
}

func (s *Segment) dirCap() uint64 {
	return atomic.LoadUint64(&s.header().dirCap)
}

func (s *Segment) dirEntry(i uint64) *dirEntry {
	base := atomic.LoadUint64(&s.header().dirOff)
	return (*dirEntry)(s.Pointer(base + i*dirEntrySize))
}
