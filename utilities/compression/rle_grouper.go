package compression

import (
	"bufio"
	"io"
)

// ByteRun is a stretch of identical bytes.
type ByteRun struct {
	Byte byte
	// RunLength is how many times Byte occurs. It's at least 1 for a real run;
	// [InvalidRLERun] has 0.
	RunLength int
}

// InvalidRLERun is what [RLEGrouper.GetNextRun] returns along with an error.
var InvalidRLERun = ByteRun{}

// RLEGrouper splits a byte stream into runs of identical bytes.
type RLEGrouper struct {
	source *bufio.Reader
}

func NewRLEGrouper(input io.Reader) RLEGrouper {
	return RLEGrouper{source: bufio.NewReader(input)}
}

// GetNextRun consumes the next run from the stream. At the end of the stream
// it returns [InvalidRLERun] and io.EOF.
func (grouper RLEGrouper) GetNextRun() (ByteRun, error) {
	first, err := grouper.source.ReadByte()
	if err != nil {
		return InvalidRLERun, err
	}

	run := ByteRun{Byte: first, RunLength: 1}
	for {
		upcoming, err := grouper.source.Peek(1)
		if err == io.EOF {
			return run, nil
		} else if err != nil {
			return InvalidRLERun, err
		}
		if upcoming[0] != first {
			return run, nil
		}

		grouper.source.Discard(1)
		run.RunLength++
	}
}
