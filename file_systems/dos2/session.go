package dos2

import (
	"fmt"
	"io"
	"os"

	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
)

// Options controls how an image is opened.
type Options struct {
	// Layout forces the image to be treated as a particular layout. Leave it as
	// [disks.LayoutAuto] to infer the layout from the image.
	Layout disks.Layout
	// Flags controls whether the session may modify the image. The zero value
	// allows reading and writing.
	Flags atrdisk.MountFlags
}

// Session is an open disk image. It carries everything an operation needs to
// know about the image, so operations on different images never interfere.
type Session struct {
	stream   io.ReadWriteSeeker
	closer   io.Closer
	geometry disks.DiskGeometry
	header   disks.Header
	// dataSize is the number of bytes in the image after the container header.
	dataSize int64
	// expanded is true for double-density images that store the boot sectors
	// at full width.
	expanded bool
	flags    atrdisk.MountFlags
	closed   bool
}

// Open mounts an image stored in `stream`. The stream must include the ATR
// header.
func Open(stream io.ReadWriteSeeker, options Options) (*Session, error) {
	imageSize, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, atrdisk.ErrIOFailed.Wrap(err)
	}

	rawHeader := make([]byte, disks.HeaderSize)
	_, err = stream.Seek(0, io.SeekStart)
	if err != nil {
		return nil, atrdisk.ErrIOFailed.Wrap(err)
	}
	_, err = io.ReadFull(stream, rawHeader)
	if err != nil {
		return nil, atrdisk.ErrUnknownGeometry.WithMessage(
			fmt.Sprintf("image is only %d bytes", imageSize))
	}

	header, err := disks.ParseHeader(rawHeader)
	if err != nil {
		return nil, err
	}

	dataSize := imageSize - disks.HeaderSize
	override := options.Layout
	if override == disks.LayoutAuto {
		override = header.LayoutHint()
	}

	layout, err := disks.ResolveLayout(dataSize, override)
	if err != nil {
		return nil, err
	}
	geometry, err := disks.GetLayoutGeometry(layout)
	if err != nil {
		return nil, err
	}

	flags := options.Flags
	if flags == 0 {
		flags = atrdisk.MountFlagsAllowAll
	}

	return &Session{
		stream:   stream,
		geometry: geometry,
		header:   header,
		dataSize: dataSize,
		expanded: layout == disks.DoubleDensity && dataSize >= geometry.ExpandedDataSize(),
		flags:    flags,
	}, nil
}

// OpenFile opens the image at `path` and mounts it. The file is opened
// read-only if `options.Flags` doesn't allow writing. Closing the session
// closes the file.
func OpenFile(path string, options Options) (*Session, error) {
	mode := os.O_RDWR
	if options.Flags != 0 && !options.Flags.CanWrite() {
		mode = os.O_RDONLY
	}

	file, err := os.OpenFile(path, mode, 0)
	if err != nil {
		return nil, atrdisk.ErrIOFailed.WithMessage(path).Wrap(err)
	}

	session, err := Open(file, options)
	if err != nil {
		file.Close()
		return nil, err
	}
	session.closer = file
	return session, nil
}

// Close releases the image. If the session was created with [OpenFile], the
// underlying file is synced and closed. Calling Close more than once is
// harmless.
func (session *Session) Close() error {
	if session.closed {
		return nil
	}
	session.closed = true

	if session.closer == nil {
		return nil
	}

	if file, ok := session.closer.(*os.File); ok && session.flags.CanWrite() {
		err := file.Sync()
		if err != nil {
			file.Close()
			return atrdisk.ErrIOFailed.Wrap(err)
		}
	}

	err := session.closer.Close()
	if err != nil {
		return atrdisk.ErrIOFailed.Wrap(err)
	}
	return nil
}

// Geometry returns the layout profile of the mounted image.
func (session *Session) Geometry() disks.DiskGeometry {
	return session.geometry
}

func (session *Session) Layout() disks.Layout {
	return session.geometry.Layout
}

// Header returns the ATR header as it was read from the image.
func (session *Session) Header() disks.Header {
	return session.header
}

// Stream gives the underlying image stream, header included.
func (session *Session) Stream() io.ReadWriteSeeker {
	return session.stream
}

func (session *Session) checkWritable() error {
	if session.closed {
		return atrdisk.ErrIOFailed.WithMessage("session is closed")
	}
	if !session.flags.CanWrite() {
		return atrdisk.ErrReadOnlyFileSystem
	}
	return nil
}
