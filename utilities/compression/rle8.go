package compression

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// maxRLE8Repeat is the most extra copies a single repeat-count byte can add
// after a pair.
const maxRLE8Repeat = 255

// encodeRun appends the RLE8 form of `run` to `output`. A pair of identical
// bytes is always followed by a count of additional copies, so runs longer than
// 257 are split into several pairs.
func encodeRun(output []byte, run ByteRun) []byte {
	remaining := run.RunLength
	for remaining >= 2 {
		extra := remaining - 2
		if extra > maxRLE8Repeat {
			extra = maxRLE8Repeat
		}
		output = append(output, run.Byte, run.Byte, byte(extra))
		remaining -= extra + 2
	}
	if remaining == 1 {
		output = append(output, run.Byte)
	}
	return output
}

// CompressRLE8 reads bytes from the input and writes compressed data to the
// output until the input is exhausted. The return value is the number of bytes
// written, only valid if no error occurred.
func CompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	grouper := NewRLEGrouper(input)
	written := int64(0)
	chunk := make([]byte, 0, 16)

	for {
		run, err := grouper.GetNextRun()
		if errors.Is(err, io.EOF) {
			return written, nil
		} else if err != nil {
			return written, err
		}

		chunk = encodeRun(chunk[:0], run)
		n, err := output.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
}

// rle8Decoder expands an RLE8 stream one token at a time.
type rle8Decoder struct {
	source *bufio.Reader
	// previous is the last literal byte emitted, or -1 if the next byte can't
	// complete a pair.
	previous int
	// offset is the position in the compressed stream, for error messages.
	offset int64
}

// next returns the bytes produced by the next token in the stream. It returns
// io.EOF only at a clean end of input.
func (decoder *rle8Decoder) next() ([]byte, error) {
	current, err := decoder.source.ReadByte()
	if err != nil {
		return nil, err
	}
	decoder.offset++

	if int(current) != decoder.previous {
		decoder.previous = int(current)
		return []byte{current}, nil
	}

	// Second byte of a pair. The pair's first byte has already been written,
	// so this one plus the repeat count still needs to be.
	count, err := decoder.source.ReadByte()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf(
			"%w: missing repeat count after two %#02x bytes at offset %d",
			io.ErrUnexpectedEOF,
			current,
			decoder.offset-2)
	} else if err != nil {
		return nil, err
	}
	decoder.offset++

	// A completed pair can't be the first half of another one.
	decoder.previous = -1
	return bytes.Repeat([]byte{current}, int(count)+1), nil
}

// DecompressRLE8 expands RLE8 data from the input into the output. The return
// value is the number of bytes written.
func DecompressRLE8(input io.Reader, output io.Writer) (int64, error) {
	decoder := rle8Decoder{source: bufio.NewReader(input), previous: -1}
	sink := bufio.NewWriter(output)
	written := int64(0)

	for {
		expanded, err := decoder.next()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return written, fmt.Errorf("error reading input: %w", err)
		}

		n, err := sink.Write(expanded)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write to output: %w", err)
		}
	}

	err := sink.Flush()
	if err != nil {
		return written, fmt.Errorf("failed to write to output: %w", err)
	}
	return written, nil
}
