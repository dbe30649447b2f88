package shm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFindUnpublish(t *testing.T) {
	seg := newTestSegment(t, 64*1024)
	off, err := seg.Alloc(32)
	require.NoError(t, err)

	require.NoError(t, seg.Publish("busses", off, 32))

	foundOff, foundSize, matches := seg.Find("busses")
	assert.Equal(t, 1, matches)
	assert.Equal(t, off, foundOff)
	assert.Equal(t, uint64(32), foundSize)

	_, _, matches = seg.Find("nothing")
	assert.Zero(t, matches)

	assert.True(t, seg.Unpublish("busses"))
	_, _, matches = seg.Find("busses")
	assert.Zero(t, matches)
	assert.False(t, seg.Unpublish("busses"))
}

func TestFindReportsMultiplicity(t *testing.T) {
	seg := newTestSegment(t, 64*1024)

	require.NoError(t, seg.Publish("dup", 1000, 8))
	require.NoError(t, seg.Publish("dup", 2000, 8))

	_, _, matches := seg.Find("dup")
	assert.Equal(t, 2, matches)

	// Unpublish removes every entry of that name.
	assert.True(t, seg.Unpublish("dup"))
	_, _, matches = seg.Find("dup")
	assert.Zero(t, matches)
}

func TestFindVisibleAcrossMappings(t *testing.T) {
	owner := newTestSegment(t, 64*1024)
	other, err := Open(owner.Name())
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	require.NoError(t, owner.Publish("shared", 512, 16))

	off, size, matches := other.Find("shared")
	assert.Equal(t, 1, matches)
	assert.Equal(t, uint64(512), off)
	assert.Equal(t, uint64(16), size)
}

func TestPublishNameTooLong(t *testing.T) {
	seg := newTestSegment(t, 64*1024)
	err := seg.Publish(strings.Repeat("x", 64), 0, 8)
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestDirectoryFull(t *testing.T) {
	seg := newTestSegment(t, 64*1024)
	for i := 0; i < DefaultDirCapacity; i++ {
		require.NoError(t, seg.Publish("entry", uint64(i), 8))
	}
	err := seg.Publish("one-more", 0, 8)
	assert.ErrorIs(t, err, ErrDirectoryFull)

	// Unpublishing makes slots reusable.
	assert.True(t, seg.Unpublish("entry"))
	assert.NoError(t, seg.Publish("one-more", 0, 8))
}

func TestEntryReuseClearsOldName(t *testing.T) {
	seg := newTestSegment(t, 64*1024)
	require.NoError(t, seg.Publish("long-old-name", 0, 8))
	assert.True(t, seg.Unpublish("long-old-name"))
	require.NoError(t, seg.Publish("new", 0, 8))

	_, _, matches := seg.Find("long-old-name")
	assert.Zero(t, matches)
	_, _, matches = seg.Find("new")
	assert.Equal(t, 1, matches)
}
