package servershm

import "strconv"

// segmentNamePrefix matches the name scsynth itself derives from its port,
// so Go clients and the audio server rendezvous on the same segment.
const segmentNamePrefix = "SuperColliderServer_"

// SegmentName maps a server port number to the canonical shared memory
// segment name. The same string doubles as the directory key under which the
// bus block is published inside the segment. Pure: equal ports always yield
// equal names.
func SegmentName(port int) string {
	return segmentNamePrefix + strconv.Itoa(port)
}
