package disks

import (
	"encoding/binary"
	"fmt"

	"github.com/dargueta/atrdisk"
	"github.com/noxer/bytewriter"
)

// HeaderSize is the size of the ATR container header. Sector data begins
// immediately after it.
const HeaderSize = 16

// HeaderMagic is the first two bytes of every ATR image, little-endian.
const HeaderMagic = 0x0296

// Header is the decoded form of the ATR container header.
type Header struct {
	// Paragraphs is the size of the sector data in 16-byte units. It's stored
	// split across two fields; the low 16 bits come first.
	Paragraphs     uint32
	BytesPerSector uint16
}

// NewHeader creates a header for an image with `dataSize` bytes of sector
// data.
func NewHeader(dataSize int64, bytesPerSector uint) Header {
	return Header{
		Paragraphs:     uint32(dataSize / 16),
		BytesPerSector: uint16(bytesPerSector),
	}
}

// ParseHeader decodes the first [HeaderSize] bytes of an image.
func ParseHeader(raw []byte) (Header, error) {
	if len(raw) < HeaderSize {
		return Header{}, atrdisk.ErrUnknownGeometry.WithMessage(
			fmt.Sprintf("ATR header is %d bytes, got %d", HeaderSize, len(raw)))
	}

	magic := binary.LittleEndian.Uint16(raw[0:2])
	if magic != HeaderMagic {
		return Header{}, atrdisk.ErrUnknownGeometry.WithMessage(
			fmt.Sprintf("not an ATR image: magic is %#04x, expected %#04x", magic, HeaderMagic))
	}

	return Header{
		Paragraphs: uint32(binary.LittleEndian.Uint16(raw[2:4])) |
			uint32(raw[6])<<16,
		BytesPerSector: binary.LittleEndian.Uint16(raw[4:6]),
	}, nil
}

// DataSize gives the size of the sector data as declared by the header. Images
// in the wild sometimes get this wrong, so don't rely on it.
func (h Header) DataSize() int64 {
	return int64(h.Paragraphs) * 16
}

// Bytes returns the on-disk form of the header.
func (h Header) Bytes() []byte {
	raw := make([]byte, HeaderSize)
	writer := bytewriter.New(raw)

	// The fields take 7 of the 16 bytes, so none of these writes can run out of
	// room. Their errors are ignored.
	binary.Write(writer, binary.LittleEndian, uint16(HeaderMagic))
	binary.Write(writer, binary.LittleEndian, uint16(h.Paragraphs&0xffff))
	binary.Write(writer, binary.LittleEndian, h.BytesPerSector)
	writer.Write([]byte{byte(h.Paragraphs >> 16)})
	return raw
}

// LayoutHint gives the layout implied by the header's sector size. Only
// double-density images use 256-byte sectors, so anything else is ambiguous
// and gives [LayoutAuto].
func (h Header) LayoutHint() Layout {
	if h.BytesPerSector == 256 {
		return DoubleDensity
	}
	return LayoutAuto
}
