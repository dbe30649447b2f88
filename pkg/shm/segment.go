package shm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"

	internalshm "github.com/scbus/server-shm/internal/shm"
)

const (
	// SegmentMagic identifies a managed segment's backing object.
	SegmentMagic = "SCSHMSEG"

	// SegmentVersion is the current layout version.
	SegmentVersion = uint32(1)

	// segmentHeaderSize is the reserved size of the header block.
	segmentHeaderSize = 128

	// DefaultDirCapacity is the number of directory entries reserved at
	// segment creation.
	DefaultDirCapacity = 16

	// MinSegmentSize is the smallest creatable segment: header, directory
	// and one minimal heap block.
	MinSegmentSize = segmentHeaderSize + DefaultDirCapacity*dirEntrySize + blockHeaderSize + minAllocSize
)

// segmentHeader is the fixed block at offset 0 of every managed segment.
// Field order is the wire layout; mutable fields are accessed atomically
// because clients read them while the server mutates.
type segmentHeader struct {
	magic     [8]byte  // 0x00: "SCSHMSEG"
	version   uint32   // 0x08: layout version
	live      uint32   // 0x0C: owner liveness flag
	totalSize uint64   // 0x10: total segment size in bytes
	dirOff    uint64   // 0x18: offset of the directory table
	dirCap    uint64   // 0x20: directory capacity in entries
	heapOff   uint64   // 0x28: start of the allocation heap
	nextOff   uint64   // 0x30: bump pointer for fresh allocations
	freeOff   uint64   // 0x38: head of the in-segment free list, 0 = empty
	serverPID uint32   // 0x40: owning process ID
	epoch     uint32   // 0x44: bumped on owner construct/destroy
	reserved  [56]byte // 0x48-0x7F: padding to 128 bytes
}

// Segment is a process-local mapping of a managed shared memory segment.
type Segment struct {
	region *internalshm.Region
	name   string
	owned  bool
}

// Create creates and maps a new managed segment of the given byte size.
// Fails if a segment of the same name already exists.
func Create(name string, size int) (*Segment, error) {
	if size < MinSegmentSize {
		return nil, fmt.Errorf("segment size %d below minimum %d: %w", size, MinSegmentSize, ErrSegmentOutOfSpace)
	}
	region, err := internalshm.CreateRegion(name, size)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			return nil, fmt.Errorf("%w: %s", ErrSegmentExists, name)
		case errors.Is(err, syscall.ENOSPC):
			return nil, fmt.Errorf("%w: %s needs %d bytes", ErrSegmentOutOfSpace, name, size)
		}
		return nil, err
	}

	s := &Segment{region: region, name: name, owned: true}
	h := s.header()
	copy(h.magic[:], SegmentMagic)
	h.version = SegmentVersion
	atomic.StoreUint64(&h.totalSize, uint64(size))
	atomic.StoreUint64(&h.dirOff, segmentHeaderSize)
	atomic.StoreUint64(&h.dirCap, DefaultDirCapacity)
	heapOff := uint64(segmentHeaderSize + DefaultDirCapacity*dirEntrySize)
	atomic.StoreUint64(&h.heapOff, heapOff)
	atomic.StoreUint64(&h.nextOff, heapOff)
	atomic.StoreUint64(&h.freeOff, 0)
	atomic.StoreUint32(&h.serverPID, uint32(os.Getpid()))
	return s, nil
}

// Open maps an existing managed segment. Open-only semantics: a missing
// segment surfaces ErrSegmentNotFound, never an implicit create.
func Open(name string) (*Segment, error) {
	region, err := internalshm.OpenRegion(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSegmentNotFound, name)
		}
		return nil, err
	}
	s := &Segment{region: region, name: name}
	if err := s.validate(); err != nil {
		_ = internalshm.UnmapRegion(region)
		return nil, err
	}
	return s, nil
}

func (s *Segment) validate() error {
	if len(s.region.Data) < segmentHeaderSize {
		return fmt.Errorf("%w: %d bytes is smaller than the header", ErrBadSegment, len(s.region.Data))
	}
	h := s.header()
	if string(h.magic[:]) != SegmentMagic {
		return fmt.Errorf("%w: bad magic %q", ErrBadSegment, h.magic[:])
	}
	if h.version != SegmentVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrBadSegment, h.version, SegmentVersion)
	}
	if atomic.LoadUint64(&h.totalSize) != uint64(len(s.region.Data)) {
		return fmt.Errorf("%w: header claims %d bytes, mapping has %d",
			ErrBadSegment, atomic.LoadUint64(&h.totalSize), len(s.region.Data))
	}
	return nil
}

// Name returns the segment's rendezvous name.
func (s *Segment) Name() string { return s.name }

// Size returns the total segment size in bytes.
func (s *Segment) Size() uint64 { return uint64(len(s.region.Data)) }

// Close unmaps the segment from this process. The backing object survives
// until Unlink.
func (s *Segment) Close() error {
	return internalshm.UnmapRegion(s.region)
}

// Unlink removes the segment's backing object from the system. Mappings held
// by other processes stay valid until they unmap.
func (s *Segment) Unlink() error {
	return internalshm.Unlink(s.name)
}

// Unlink removes the backing object of the named segment without mapping it.
func Unlink(name string) error {
	return internalshm.Unlink(name)
}

// Live reports the owner liveness flag.
func (s *Segment) Live() bool {
	return atomic.LoadUint32(&s.header().live) != 0
}

// SetLive sets the owner liveness flag.
func (s *Segment) SetLive(live bool) {
	var v uint32
	if live {
		v = 1
	}
	atomic.StoreUint32(&s.header().live, v)
}

// Epoch returns the segment epoch. The owner bumps it on construct and
// destroy, so attached readers can detect staleness.
func (s *Segment) Epoch() uint32 {
	return atomic.LoadUint32(&s.header().epoch)
}

// BumpEpoch increments the segment epoch.
func (s *Segment) BumpEpoch() uint32 {
	return atomic.AddUint32(&s.header().epoch, 1)
}

// OwnerPID returns the process ID recorded by the segment's creator.
func (s *Segment) OwnerPID() uint32 {
	return atomic.LoadUint32(&s.header().serverPID)
}

// Pointer resolves a segment offset to an address in this process's mapping.
// The offset must come from Alloc or Find on the same segment.
func (s *Segment) Pointer(off uint64) unsafe.Pointer {
	return unsafe.Pointer(&s.region.Data[off])
}

// Bytes returns a bounds-checked view of n bytes at the given offset.
func (s *Segment) Bytes(off, n uint64) ([]byte, error) {
	if off+n > s.Size() || off+n < off {
		return nil, fmt.Errorf("%w: range [%d, %d) outside segment of %d bytes",
			ErrBadSegment, off, off+n, s.Size())
	}
	return s.region.Data[off : off+n : off+n], nil
}

func (s *Segment) header() *segmentHeader {
	return (*segmentHeader)(unsafe.Pointer(&s.region.Data[0]))
}
