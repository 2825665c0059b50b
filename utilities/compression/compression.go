package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
)

// CompressImage compresses a disk image using RLE8 and gzip.
//
// The returned int64 gives the number of bytes written to the output stream. If
// an error occurred, the value is undefined and should not be used.
func CompressImage(input io.Reader, output io.Writer) (int64, error) {
	gzWriter, err := gzip.NewWriterLevel(output, gzip.BestCompression)
	if err != nil {
		return 0, err
	}

	n, err := CompressRLE8(input, gzWriter)
	if err != nil {
		gzWriter.Close()
		return n, err
	}
	// Close flushes the gzip trailer, so its error matters.
	return n, gzWriter.Close()
}

// DecompressImage takes a gzipped, RLE8-encoded disk image and decompresses it
// to the original raw bytes.
//
// The returned int64 gives the number of bytes written to the output (i.e. the
// decompressed size of the image). If an error occurred, the value is undefined
// and should not be used.
func DecompressImage(input io.Reader, output io.Writer) (int64, error) {
	gzReader, err := gzip.NewReader(input)
	if err != nil {
		return 0, err
	}
	defer gzReader.Close()
	return DecompressRLE8(gzReader, output)
}

// DecompressImageToBytes is a convenience wrapper around [DecompressImage] that
// returns the decompressed image in a new byte slice.
func DecompressImageToBytes(input io.Reader) ([]byte, error) {
	var buffer bytes.Buffer
	_, err := DecompressImage(input, &buffer)
	if err != nil {
		return nil, err
	}
	return buffer.Bytes(), nil
}

// SnapshotImage compresses the entire contents of `image` into a new file at
// `path`. The image's read position is restored to the beginning afterwards.
// The file is created exclusively; an existing snapshot is never overwritten.
func SnapshotImage(image io.ReadSeeker, path string) (int64, error) {
	_, err := image.Seek(0, io.SeekStart)
	if err != nil {
		return 0, err
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}

	n, err := CompressImage(image, file)
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return n, fmt.Errorf("failed to write snapshot %q: %w", path, err)
	}

	_, err = image.Seek(0, io.SeekStart)
	return n, err
}

// RestoreSnapshot expands a snapshot written by [SnapshotImage] into `output`,
// returning the number of bytes written.
func RestoreSnapshot(path string, output io.Writer) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	n, err := DecompressImage(file, output)
	if err != nil {
		return n, fmt.Errorf("failed to restore snapshot %q: %w", path, err)
	}
	return n, nil
}
