package servershm

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"github.com/Workiva/go-datastructures/queue"
	"go.opentelemetry.io/otel/metric"

	"github.com/scbus/server-shm/pkg/shm"
)

// busBlockSize is the size of the published busBlock in shared memory.
const busBlockSize = 16

// busBlock is the structure published in the segment directory under the
// segment name. dataOff is an offset into the same segment, never a pointer:
// each process resolves it against its own mapping.
type busBlock struct {
	count   uint64 // number of control busses
	dataOff uint64 // segment offset of the float32 array
}

// busUpdate is one deferred SetControlBus request.
type busUpdate struct {
	index int32
	value float32
}

// Server owns the control bus array inside a managed shared memory segment.
// It allocates the array and the published bus block at construction and is
// the only party that ever writes or frees them.
type Server struct {
	seg      *shm.Segment
	blockOff uint64
	dataOff  uint64
	busses   []float32
	count    int

	// pending holds bus updates until the engine drains them at a block
	// boundary, so writer threads never race the engine's read pass.
	pending *queue.Queue

	mu        sync.Mutex
	destroyed bool

	opts        options
	otelApplied metric.Int64Counter
}

// NewServer constructs the control bus block inside an already-created
// segment. The array is zero-filled. On any failure nothing stays allocated
// or published and no usable Server is returned.
func NewServer(seg *shm.Segment, busCount int, opts ...Option) (*Server, error) {
	o := applyOptions(opts)
	if o.tracer != nil {
		_, span := o.tracer.Start(context.Background(), "servershm.construct")
		defer span.End()
	}
	if busCount < 0 {
		return nil, fmt.Errorf("%w: %d", ErrNegativeBusCount, busCount)
	}

	var dataOff uint64
	if busCount > 0 {
		var err error
		dataOff, err = seg.Alloc(uint64(busCount) * 4)
		if err != nil {
			return nil, fmt.Errorf("allocate %d control busses: %w", busCount, err)
		}
	}
	blockOff, err := seg.Alloc(busBlockSize)
	if err != nil {
		if busCount > 0 {
			seg.Free(dataOff)
		}
		return nil, fmt.Errorf("allocate bus block: %w", err)
	}

	blk := (*busBlock)(seg.Pointer(blockOff))
	blk.count = uint64(busCount)
	blk.dataOff = dataOff

	if err := seg.Publish(seg.Name(), blockOff, busBlockSize); err != nil {
		seg.Free(blockOff)
		if busCount > 0 {
			seg.Free(dataOff)
		}
		return nil, fmt.Errorf("publish bus block: %w", err)
	}

	var busses []float32
	if busCount > 0 {
		busses = unsafe.Slice((*float32)(seg.Pointer(dataOff)), busCount)
	}

	// Publish first, then flip liveness: a client that sees live also
	// finds the block.
	seg.BumpEpoch()
	seg.SetLive(true)

	s := &Server{
		seg:      seg,
		blockOff: blockOff,
		dataOff:  dataOff,
		busses:   busses,
		count:    busCount,
		pending:  queue.New(int64(max(busCount, 16))),
		opts:     o,
	}
	if o.meter != nil {
		s.otelApplied, _ = o.meter.Int64Counter("scshm.bus_updates.applied")
	}
	serverConstructs.Inc()
	internalLogger.infof("bus block with %d busses constructed in segment %s", busCount, seg.Name())
	return s, nil
}

// Destroy unpublishes the bus block and returns both allocations to the
// segment's allocator. It must run before the segment itself is unlinked.
// A second Destroy returns ErrAlreadyDestroyed without touching the segment.
func (s *Server) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrAlreadyDestroyed
	}
	s.destroyed = true

	// Drop liveness before tearing down so polling clients go stale
	// instead of reading freed memory.
	s.seg.SetLive(false)
	s.seg.BumpEpoch()

	s.seg.Unpublish(s.seg.Name())
	s.seg.Free(s.blockOff)
	if s.count > 0 {
		s.seg.Free(s.dataOff)
	}
	s.busses = nil
	s.pending.Dispose()
	serverDestroys.Inc()
	internalLogger.infof("bus block destroyed in segment %s", s.seg.Name())
	return nil
}

// SetControlBus queues a single bus update. The write is deferred: it only
// reaches the array when the engine calls DrainPendingUpdates at the next
// block boundary.
func (s *Server) SetControlBus(index int, value float32) error {
	s.mu.Lock()
	destroyed := s.destroyed
	s.mu.Unlock()
	if destroyed {
		return ErrAlreadyDestroyed
	}
	if index < 0 || index >= s.count {
		return fmt.Errorf("%w: index %d, bus count %d", ErrBusIndexOutOfRange, index, s.count)
	}
	if err := s.pending.Put(busUpdate{index: int32(index), value: value}); err != nil {
		return ErrAlreadyDestroyed
	}
	busUpdatesQueued.Inc()
	return nil
}

// DrainPendingUpdates applies every queued bus update to the shared array
// and returns how many were applied. The audio engine calls this once per
// processing block, before its read pass.
func (s *Server) DrainPendingUpdates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return 0
	}
	n := s.pending.Len()
	if n == 0 {
		return 0
	}
	items, err := s.pending.Get(n)
	if err != nil {
		return 0
	}
	for _, it := range items {
		u := it.(busUpdate)
		s.busses[u.index] = u.value
	}
	busUpdatesApplied.Add(float64(len(items)))
	if s.otelApplied != nil {
		s.otelApplied.Add(context.Background(), int64(len(items)))
	}
	return len(items)
}

// ControlBusses returns the live control bus array. The slice aliases shared
// memory and stays valid until Destroy.
func (s *Server) ControlBusses() []float32 {
	return s.busses
}

// BusCount returns the number of control busses.
func (s *Server) BusCount() int {
	return s.count
}
