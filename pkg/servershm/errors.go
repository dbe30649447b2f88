package servershm

import (
	"errors"

	"github.com/scbus/server-shm/pkg/shm"
)

var (
	// ErrSegmentNotFound is returned by NewClient when no server has
	// created the segment for the requested port.
	ErrSegmentNotFound = shm.ErrSegmentNotFound

	// ErrBusBlockNotFound is returned when the segment exists but no bus
	// block is published under the segment name: the server is still
	// starting up, or the segment belongs to something else.
	ErrBusBlockNotFound = errors.New("control bus block not found in segment")

	// ErrBusBlockAmbiguous is returned when more than one bus block is
	// published under the segment name, which indicates corruption or a
	// double construct.
	ErrBusBlockAmbiguous = errors.New("multiple control bus blocks published in segment")

	// ErrBusIndexOutOfRange is returned by SetControlBus for an index
	// outside [0, BusCount).
	ErrBusIndexOutOfRange = errors.New("control bus index out of range")

	// ErrNegativeBusCount is returned when constructing a server with a
	// negative control bus count.
	ErrNegativeBusCount = errors.New("control bus count must not be negative")

	// ErrAlreadyDestroyed is returned when a server's shared state is used
	// after Destroy.
	ErrAlreadyDestroyed = errors.New("server shared memory already destroyed")

	// ErrClientClosed is returned when an attached client is used after
	// Close.
	ErrClientClosed = errors.New("client already closed")
)
