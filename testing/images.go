// Package testing contains helpers for tests that need disk images.
package testing

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"
	"testing"

	"github.com/dargueta/atrdisk/utilities/compression"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"
)

// CreateRandomImage creates an image of `size` bytes filled with random data.
// It is guaranteed to either return a valid slice or fail the test and abort.
func CreateRandomImage(size uint, t *testing.T) []byte {
	backingData := make([]byte, size)

	_, err := rand.Read(backingData)
	require.NoErrorf(t, err, "failed to initialize %d bytes with random data", size)
	return backingData
}

// NewImageStream returns a stream over a copy of `image`. The stream can be
// read and written, but not resized.
func NewImageStream(image []byte) io.ReadWriteSeeker {
	imageCopy := make([]byte, len(image))
	copy(imageCopy, image)
	return bytesextra.NewReadWriteSeeker(imageCopy)
}

// ReadAll returns the entire contents of an image stream, leaving the stream
// positioned at the beginning.
func ReadAll(t *testing.T, stream io.ReadSeeker) []byte {
	_, err := stream.Seek(0, io.SeekStart)
	require.NoError(t, err)

	contents, err := io.ReadAll(stream)
	require.NoError(t, err)

	_, err = stream.Seek(0, io.SeekStart)
	require.NoError(t, err)
	return contents
}

// LoadDiskImage takes a compressed disk image and returns a stream to access the
// uncompressed data.
//
//   - Writes to the stream do not affect `compressedImageBytes`.
//   - While the stream can be written to, its size is fixed to `expectedSize`.
//     Attempting to write past the end of this buffer will trigger an error.
func LoadDiskImage(
	t *testing.T, compressedImageBytes []byte, expectedSize int64,
) io.ReadWriteSeeker {
	compressedBuf := bytes.NewBuffer(compressedImageBytes)
	require.Greater(t, len(compressedImageBytes), 0, "compressed image is empty")

	imageBytes, err := compression.DecompressImageToBytes(compressedBuf)
	require.NoError(t, err)

	require.EqualValues(
		t,
		expectedSize,
		len(imageBytes),
		"uncompressed image is wrong size",
	)
	return bytesextra.NewReadWriteSeeker(imageBytes)
}

// LoadDiskImageFile is like [LoadDiskImage] but reads the compressed image from
// a file, usually under testdata/.
func LoadDiskImageFile(t *testing.T, path string, expectedSize int64) io.ReadWriteSeeker {
	compressed, err := os.ReadFile(path)
	require.NoErrorf(t, err, "failed to read fixture %q", path)
	return LoadDiskImage(t, compressed, expectedSize)
}
