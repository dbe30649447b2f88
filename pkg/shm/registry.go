package shm

import (
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"
)

// Process-wide registry of attached segments. Several attachers inside one
// process share a single mapping per segment name; the mapping is dropped
// when the last reference goes away.

var attached = cmap.New[*attachRef]()

type attachRef struct {
	mu   sync.Mutex
	seg  *Segment
	refs int
}

// Acquire opens the named segment, or hands out the mapping an earlier
// Acquire in this process already holds.
func Acquire(name string) (*Segment, error) {
	for {
		if ref, ok := attached.Get(name); ok {
			ref.mu.Lock()
			if ref.refs > 0 {
				ref.refs++
				ref.mu.Unlock()
				return ref.seg, nil
			}
			ref.mu.Unlock()
			// Lost a race with the final Release; retry with a fresh entry.
			attached.RemoveCb(name, func(_ string, v *attachRef, exists bool) bool {
				return exists && v == ref
			})
			continue
		}

		ref := &attachRef{}
		ref.mu.Lock()
		if !attached.SetIfAbsent(name, ref) {
			ref.mu.Unlock()
			continue
		}
		seg, err := Open(name)
		if err != nil {
			attached.Remove(name)
			ref.mu.Unlock()
			return nil, err
		}
		ref.seg, ref.refs = seg, 1
		ref.mu.Unlock()
		return seg, nil
	}
}

// Release drops one reference on an acquired segment and unmaps it when no
// reference remains.
func Release(seg *Segment) error {
	ref, ok := attached.Get(seg.name)
	if !ok {
		return seg.Close()
	}
	ref.mu.Lock()
	ref.refs--
	last := ref.refs == 0
	ref.mu.Unlock()
	if !last {
		return nil
	}
	attached.RemoveCb(seg.name, func(_ string, v *attachRef, exists bool) bool {
		return exists && v == ref
	})
	return seg.Close()
}
