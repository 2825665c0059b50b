package dos2

import (
	"encoding/binary"

	"github.com/dargueta/atrdisk"
)

// Binary load files begin with this marker, and may repeat it before any
// segment.
const segmentMarker = 0xffff

// Addresses of the vectors DOS jumps through after loading a segment (INIT) or
// the whole file (RUN).
const (
	runVectorAddress  = 0x02e0
	initVectorAddress = 0x02e2
)

// ParseSegments returns the load segments of a binary load file, or nil if the
// data isn't one. A truncated final segment is dropped. Nothing here is
// validated beyond what's needed to find the segment boundaries.
func ParseSegments(data []byte) []atrdisk.Segment {
	if len(data) < 6 || binary.LittleEndian.Uint16(data) != segmentMarker {
		return nil
	}

	segments := []atrdisk.Segment{}
	position := 2
	for position+4 <= len(data) {
		start := binary.LittleEndian.Uint16(data[position:])
		if start == segmentMarker {
			position += 2
			continue
		}

		end := binary.LittleEndian.Uint16(data[position+2:])
		if end < start {
			break
		}

		body := position + 4
		length := int(end) - int(start) + 1
		if body+length > len(data) {
			break
		}

		segment := atrdisk.Segment{Start: start, End: end}
		segment.Run, segment.HasRun = readVector(data[body:body+length], start, runVectorAddress)
		segment.Init, segment.HasInit = readVector(data[body:body+length], start, initVectorAddress)
		segments = append(segments, segment)

		position = body + length
	}
	return segments
}

// readVector returns the 16-bit value a segment loaded at `loadAddress` stores
// at `vector`. It only counts if the segment writes both bytes.
func readVector(contents []byte, loadAddress uint16, vector int) (uint16, bool) {
	offset := vector - int(loadAddress)
	if offset < 0 || offset+2 > len(contents) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(contents[offset:]), true
}
