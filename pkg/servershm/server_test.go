package servershm

import (
	"os"
	"sync/atomic"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scbus/server-shm/pkg/shm"
)

var testPortSeq uint32

// testPort hands out a port unique to this process and call so segments
// created by parallel tests never collide.
func testPort(t *testing.T) int {
	t.Helper()
	return 57110 + (os.Getpid()%100)*1000 + int(atomic.AddUint32(&testPortSeq, 1))
}

func newTestServer(t *testing.T, port, busCount, segSize int) (*Server, *shm.Segment) {
	t.Helper()
	seg, err := shm.Create(SegmentName(port), segSize)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = seg.Close()
		_ = seg.Unlink()
	})
	srv, err := NewServer(seg, busCount)
	require.NoError(t, err)
	return srv, seg
}

func counterValue(t *testing.T, read func(*dto.Metric) error) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, read(m))
	return m.GetCounter().GetValue()
}

func TestServerConstructZeroFilled(t *testing.T) {
	srv, _ := newTestServer(t, testPort(t), 10, 64*1024)
	defer func() { _ = srv.Destroy() }()

	assert.Equal(t, 10, srv.BusCount())
	busses := srv.ControlBusses()
	require.Len(t, busses, 10)
	for i, v := range busses {
		assert.Zerof(t, v, "bus %d not zero-initialized", i)
	}
}

func TestServerZeroBusses(t *testing.T) {
	port := testPort(t)
	seg, err := shm.Create(SegmentName(port), 64*1024)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = seg.Close()
		_ = seg.Unlink()
	})

	srv, err := NewServer(seg, 0)
	require.NoError(t, err)
	defer func() { _ = srv.Destroy() }()

	assert.Zero(t, srv.BusCount())
	assert.Empty(t, srv.ControlBusses())

	// The block is still published, so a client can attach and learn the
	// count is zero.
	client, err := NewClient(port)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()
	assert.Zero(t, client.BusCount())
}

func TestServerNegativeBusCount(t *testing.T) {
	seg, err := shm.Create(SegmentName(testPort(t)), 64*1024)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = seg.Close()
		_ = seg.Unlink()
	})

	_, err = NewServer(seg, -1)
	assert.ErrorIs(t, err, ErrNegativeBusCount)
}

func TestServerAllocationFailure(t *testing.T) {
	seg, err := shm.Create(SegmentName(testPort(t)), shm.MinSegmentSize)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = seg.Close()
		_ = seg.Unlink()
	})
	before := seg.Remaining()

	_, err = NewServer(seg, 1<<20)
	assert.ErrorIs(t, err, shm.ErrSegmentOutOfSpace)

	// Nothing leaked, nothing published.
	assert.Equal(t, before, seg.Remaining())
	_, _, matches := seg.Find(seg.Name())
	assert.Zero(t, matches)
	assert.False(t, seg.Live())
}

func TestSetControlBusIsDeferred(t *testing.T) {
	srv, _ := newTestServer(t, testPort(t), 10, 64*1024)
	defer func() { _ = srv.Destroy() }()

	require.NoError(t, srv.SetControlBus(3, 1.5))
	require.NoError(t, srv.SetControlBus(7, -2.25))

	// Nothing reaches the array until the engine drains at a block
	// boundary.
	assert.Zero(t, srv.ControlBusses()[3])
	assert.Zero(t, srv.ControlBusses()[7])

	assert.Equal(t, 2, srv.DrainPendingUpdates())
	assert.Equal(t, float32(1.5), srv.ControlBusses()[3])
	assert.Equal(t, float32(-2.25), srv.ControlBusses()[7])

	assert.Zero(t, srv.DrainPendingUpdates())
}

func TestSetControlBusLastWriteWins(t *testing.T) {
	srv, _ := newTestServer(t, testPort(t), 4, 64*1024)
	defer func() { _ = srv.Destroy() }()

	require.NoError(t, srv.SetControlBus(0, 1))
	require.NoError(t, srv.SetControlBus(0, 2))
	require.NoError(t, srv.SetControlBus(0, 3))

	assert.Equal(t, 3, srv.DrainPendingUpdates())
	assert.Equal(t, float32(3), srv.ControlBusses()[0])
}

func TestSetControlBusOutOfRange(t *testing.T) {
	srv, _ := newTestServer(t, testPort(t), 10, 64*1024)
	defer func() { _ = srv.Destroy() }()

	assert.ErrorIs(t, srv.SetControlBus(-1, 0), ErrBusIndexOutOfRange)
	assert.ErrorIs(t, srv.SetControlBus(10, 0), ErrBusIndexOutOfRange)
	assert.NoError(t, srv.SetControlBus(9, 0))
}

func TestDestroyExactlyOnce(t *testing.T) {
	srv, seg := newTestServer(t, testPort(t), 10, 64*1024)
	before := seg.Remaining()

	require.NoError(t, srv.Destroy())
	assert.ErrorIs(t, srv.Destroy(), ErrAlreadyDestroyed)

	// Both allocations went back to the segment and the block is gone
	// from the directory.
	assert.Greater(t, seg.Remaining(), before)
	_, _, matches := seg.Find(seg.Name())
	assert.Zero(t, matches)
	assert.False(t, seg.Live())
}

func TestDestroyReturnsAllMemory(t *testing.T) {
	seg, err := shm.Create(SegmentName(testPort(t)), 64*1024)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = seg.Close()
		_ = seg.Unlink()
	})
	before := seg.Remaining()

	srv, err := NewServer(seg, 100)
	require.NoError(t, err)
	require.NoError(t, srv.Destroy())

	assert.Equal(t, before, seg.Remaining())
}

func TestServerUseAfterDestroy(t *testing.T) {
	srv, _ := newTestServer(t, testPort(t), 10, 64*1024)
	require.NoError(t, srv.Destroy())

	assert.ErrorIs(t, srv.SetControlBus(0, 1), ErrAlreadyDestroyed)
	assert.Zero(t, srv.DrainPendingUpdates())
	assert.Nil(t, srv.ControlBusses())
}

func TestDrainCounterAdvances(t *testing.T) {
	srv, _ := newTestServer(t, testPort(t), 4, 64*1024)
	defer func() { _ = srv.Destroy() }()

	before := counterValue(t, busUpdatesApplied.Write)
	require.NoError(t, srv.SetControlBus(1, 42))
	srv.DrainPendingUpdates()
	after := counterValue(t, busUpdatesApplied.Write)
	assert.Equal(t, 1.0, after-before)
}
