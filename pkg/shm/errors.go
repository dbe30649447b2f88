package shm

import "errors"

var (
	// ErrSegmentNotFound is returned when opening a named segment whose
	// backing object does not exist.
	ErrSegmentNotFound = errors.New("shared memory segment not found")

	// ErrSegmentExists is returned when creating a segment whose name is
	// already taken.
	ErrSegmentExists = errors.New("shared memory segment already exists")

	// ErrSegmentOutOfSpace is returned when an allocation does not fit in
	// the segment's remaining capacity, or the backing filesystem cannot
	// hold the segment at all.
	ErrSegmentOutOfSpace = errors.New("shared memory segment has not enough space left")

	// ErrBadSegment is returned when an opened segment does not carry a
	// valid header (wrong magic, version or size).
	ErrBadSegment = errors.New("invalid shared memory segment layout")

	// ErrNameTooLong is returned when publishing an object whose name does
	// not fit a directory entry.
	ErrNameTooLong = errors.New("object name exceeds directory entry size")

	// ErrDirectoryFull is returned when the segment's directory has no
	// free entries left.
	ErrDirectoryFull = errors.New("segment directory is full")
)
