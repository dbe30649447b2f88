package servershm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSegmentNameFormat(t *testing.T) {
	assert.Equal(t, "SuperColliderServer_57110", SegmentName(57110))
	assert.Equal(t, "SuperColliderServer_0", SegmentName(0))
}

func TestSegmentNameStable(t *testing.T) {
	for _, port := range []int{0, 1, 57110, 57120, 65535} {
		assert.Equal(t, SegmentName(port), SegmentName(port))
	}
}

func TestSegmentNameDistinct(t *testing.T) {
	seen := make(map[string]int)
	for port := 57100; port < 57200; port++ {
		name := SegmentName(port)
		prev, dup := seen[name]
		assert.Falsef(t, dup, "ports %d and %d share name %q", prev, port, name)
		seen[name] = port
	}
}
