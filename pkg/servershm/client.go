package servershm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"

	"github.com/scbus/server-shm/pkg/shm"
)

// Client is a non-owning attachment to a server's control bus array. It
// never allocates or frees inside the segment; it only looks the published
// block up and reads.
//
// Attachment is terminal: a client whose server went away reports stale via
// Live and must be closed and recreated, there is no re-attach.
type Client struct {
	seg    *shm.Segment
	busses []float32
	count  int
	epoch  uint32

	mu     sync.Mutex
	closed bool
}

// NewClient attaches to the bus segment of the server on the given port.
// Fail-fast: a missing segment or a missing/ambiguous bus block surfaces
// immediately and no Client is returned.
func NewClient(port int, opts ...Option) (*Client, error) {
	o := applyOptions(opts)
	if o.tracer != nil {
		_, span := o.tracer.Start(context.Background(), "servershm.attach")
		defer span.End()
	}

	name := SegmentName(port)
	seg, err := shm.Acquire(name)
	if err != nil {
		if errors.Is(err, shm.ErrSegmentNotFound) {
			attachFailures.WithLabelValues(failureSegmentNotFound).Inc()
		} else {
			attachFailures.WithLabelValues(failureBadSegment).Inc()
		}
		return nil, fmt.Errorf("attach to port %d: %w", port, err)
	}

	blockOff, blockSize, matches := seg.Find(name)
	switch {
	case matches == 0:
		_ = shm.Release(seg)
		attachFailures.WithLabelValues(failureBlockNotFound).Inc()
		return nil, fmt.Errorf("attach to port %d: %w", port, ErrBusBlockNotFound)
	case matches > 1:
		_ = shm.Release(seg)
		attachFailures.WithLabelValues(failureBlockAmbiguous).Inc()
		return nil, fmt.Errorf("attach to port %d: %d entries: %w", port, matches, ErrBusBlockAmbiguous)
	}
	if blockSize < busBlockSize {
		_ = shm.Release(seg)
		attachFailures.WithLabelValues(failureBadSegment).Inc()
		return nil, fmt.Errorf("attach to port %d: bus block is %d bytes, want %d: %w",
			port, blockSize, busBlockSize, shm.ErrBadSegment)
	}

	blk := (*busBlock)(seg.Pointer(blockOff))
	count := int(blk.count)
	var busses []float32
	if count > 0 {
		if _, err := seg.Bytes(blk.dataOff, uint64(count)*4); err != nil {
			_ = shm.Release(seg)
			attachFailures.WithLabelValues(failureBadSegment).Inc()
			return nil, fmt.Errorf("attach to port %d: %w", port, err)
		}
		busses = unsafe.Slice((*float32)(seg.Pointer(blk.dataOff)), count)
	}

	c := &Client{
		seg:    seg,
		busses: busses,
		count:  count,
		epoch:  seg.Epoch(),
	}
	clientAttaches.Inc()
	internalLogger.infof("attached to segment %s with %d busses", name, count)
	return c, nil
}

// DialClient attaches like NewClient but rides out server startup: segment
// and bus block not-found failures are retried on a constant backoff until
// the context ends. Everything else fails immediately.
func DialClient(ctx context.Context, port int, opts ...Option) (*Client, error) {
	var c *Client
	op := func() error {
		var err error
		c, err = NewClient(port, opts...)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrSegmentNotFound) || errors.Is(err, ErrBusBlockNotFound) {
			return err
		}
		return backoff.Permanent(err)
	}
	pol := backoff.WithContext(backoff.NewConstantBackOff(50*time.Millisecond), ctx)
	if err := backoff.Retry(op, pol); err != nil {
		return nil, err
	}
	return c, nil
}

// ControlBusses returns the control bus array as mapped into this process.
// The memory is writable, but the protocol contract reserves all writes for
// the server.
func (c *Client) ControlBusses() []float32 {
	return c.busses
}

// BusCount returns the number of control busses the server published.
func (c *Client) BusCount() int {
	return c.count
}

// Live reports whether the attachment is still backed by a living server:
// the segment's liveness flag is set and its epoch has not moved since the
// attach. A stale client must be closed and recreated. A closed client is
// never live.
func (c *Client) Live() bool {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return false
	}
	return c.seg.Live() && c.seg.Epoch() == c.epoch
}

// Close drops the attachment. The bus array is never freed from the client
// side; only the process-local mapping reference is released.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClientClosed
	}
	c.closed = true
	c.busses = nil
	return shm.Release(c.seg)
}
