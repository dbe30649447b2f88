package shm

import (
	"fmt"
	"sync/atomic"
)

// In-segment allocator. Blocks carry an 8-byte size header right before the
// payload; free blocks reuse their first 8 payload bytes as the next-pointer
// of a singly linked free list whose head lives in the segment header. All
// list state is kept inside the segment, so the allocator survives remapping.
//
// Only the segment owner allocates and frees. Attached readers never touch
// the heap, which keeps the single-writer discipline without a cross-process
// lock.

const (
	blockHeaderSize = 8
	minAllocSize    = 8
)

func align8(n uint64) uint64 { return (n + 7) &^ 7 }

// Alloc reserves n bytes inside the segment and returns the payload offset.
// The payload is zeroed. A request that does not fit the remaining capacity
// fails with ErrSegmentOutOfSpace and leaves the segment untouched.
func (s *Segment) Alloc(n uint64) (uint64, error) {
	if n == 0 {
		return 0, fmt.Errorf("alloc: zero-byte allocation")
	}
	if n < minAllocSize {
		n = minAllocSize
	}
	n = align8(n)
	h := s.header()

	// First fit over the free list.
	prev := uint64(0)
	for cur := atomic.LoadUint64(&h.freeOff); cur != 0; {
		next := *s.u64(cur)
		if *s.u64(cur - blockHeaderSize) >= n {
			if prev == 0 {
				atomic.StoreUint64(&h.freeOff, next)
			} else {
				*s.u64(prev) = next
			}
			s.zero(cur, *s.u64(cur - blockHeaderSize))
			return cur, nil
		}
		prev, cur = cur, next
	}

	// Fresh block off the bump pointer.
	off := align8(atomic.LoadUint64(&h.nextOff)) + blockHeaderSize
	if off+n > atomic.LoadUint64(&h.totalSize) || off+n < off {
		return 0, fmt.Errorf("%w: alloc of %d bytes, %d free", ErrSegmentOutOfSpace, n, s.Remaining())
	}
	*s.u64(off - blockHeaderSize) = n
	atomic.StoreUint64(&h.nextOff, off+n)
	s.zero(off, n)
	return off, nil
}

// Free returns the block at the given payload offset to the allocator.
// Freeing the most recent allocation rewinds the bump pointer; anything else
// goes on the free list for reuse.
func (s *Segment) Free(off uint64) {
	h := s.header()
	size := *s.u64(off - blockHeaderSize)
	if off+size == atomic.LoadUint64(&h.nextOff) {
		atomic.StoreUint64(&h.nextOff, off-blockHeaderSize)
		return
	}
	*s.u64(off) = atomic.LoadUint64(&h.freeOff)
	atomic.StoreUint64(&h.freeOff, off)
}

// Remaining returns the bytes left in the untouched tail of the heap. Blocks
// parked on the free list are not counted.
func (s *Segment) Remaining() uint64 {
	h := s.header()
	total := atomic.LoadUint64(&h.totalSize)
	next := align8(atomic.LoadUint64(&h.nextOff))
	if next >= total {
		return 0
	}
	return total - next
}

func (s *Segment) u64(off uint64) *uint64 {
	return (*uint64)(s.Pointer(off))
}

func (s *Segment) zero(off, n uint64) {
	b := s.region.Data[off : off+n]
	for i := range b {
		b[i] = 0
	}
}
