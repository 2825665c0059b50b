package dos2

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
	c "github.com/dargueta/atrdisk/file_systems/common"
	"github.com/noxer/bytewriter"
	"github.com/xaionaro-go/bytesextra"
)

// MaxBootSize gives the largest boot payload [FormatImage] accepts for a
// layout. Single- and enhanced-density payloads must fit in the three boot
// sectors. Double-density payloads may continue into full-width sectors up to
// the VTOC.
func MaxBootSize(geometry *disks.DiskGeometry) int {
	bootArea := int(geometry.BootSectors * geometry.BytesPerBootSector)
	if geometry.BytesPerBootSector == geometry.BytesPerSector {
		return bootArea
	}
	extraSectors := int(geometry.VTOCSector) - 1 - int(geometry.BootSectors)
	return bootArea + extraSectors*int(geometry.BytesPerSector)
}

// FormatImage creates a blank image in memory, ATR header included. If `boot`
// isn't empty it's written to the boot sectors, starting at sector 1.
//
// Double-density images are created with 128-byte boot sectors. Boot data that
// spills past sector 3 is written to the following sectors, which stay marked
// free in the bitmap just as DOS leaves them.
func FormatImage(layout disks.Layout, boot []byte) ([]byte, error) {
	geometry, err := disks.GetLayoutGeometry(layout)
	if err != nil {
		return nil, err
	}

	maxBoot := MaxBootSize(&geometry)
	if len(boot) > maxBoot {
		return nil, atrdisk.ErrFileTooLarge.WithMessage(
			fmt.Sprintf(
				"boot code is %d bytes, at most %d fit on a %s disk",
				len(boot),
				maxBoot,
				geometry.Name))
	}

	dataSize := geometry.DataSize()
	image := make([]byte, disks.HeaderSize+dataSize)
	copy(image, disks.NewHeader(dataSize, geometry.BytesPerSector).Bytes())

	stream := bytesextra.NewReadWriteSeeker(image)
	session, err := Open(
		stream, Options{Layout: layout, Flags: atrdisk.MountFlagsAllowAll})
	if err != nil {
		return nil, err
	}
	defer session.Close()

	err = session.writeVTOCHeader()
	if err != nil {
		return nil, err
	}

	bm := NewBitmap(geometry.AddressableSectors)
	for i := uint(0); i < geometry.AddressableSectors; i++ {
		bm.Mark(c.Sector(i), geometry.IsReserved(i))
	}
	err = session.StoreBitmap(bm)
	if err != nil {
		return nil, err
	}

	err = session.writeBootCode(boot)
	if err != nil {
		return nil, err
	}

	formatted := make([]byte, len(image))
	_, err = stream.Seek(0, io.SeekStart)
	if err == nil {
		_, err = io.ReadFull(stream, formatted)
	}
	if err != nil {
		return nil, atrdisk.ErrIOFailed.Wrap(err)
	}
	return formatted, nil
}

func (session *Session) writeVTOCHeader() error {
	geometry := &session.geometry
	vtoc := make([]byte, geometry.BytesPerSector)
	writer := bytewriter.New(vtoc)

	// Five bytes into a full sector buffer; the writes can't fail.
	binary.Write(writer, binary.LittleEndian, uint8(geometry.DOSVersion))
	binary.Write(writer, binary.LittleEndian, uint16(geometry.NominalUsableSectors))
	// The free count is filled in when the bitmap is stored.
	binary.Write(writer, binary.LittleEndian, uint16(0))

	return session.WriteSector(c.Sector(geometry.VTOCSector), vtoc)
}

func (session *Session) writeBootCode(boot []byte) error {
	sector := c.Sector(1)
	for len(boot) > 0 {
		buffer := make([]byte, session.geometry.SectorSize(uint(sector)))
		n := copy(buffer, boot)
		boot = boot[n:]

		err := session.WriteSector(sector, buffer)
		if err != nil {
			return err
		}
		sector++
	}
	return nil
}

// Format writes a blank image of the given layout to `output`. See
// [FormatImage].
func Format(output io.Writer, layout disks.Layout, boot []byte) error {
	image, err := FormatImage(layout, boot)
	if err != nil {
		return err
	}

	_, err = output.Write(image)
	if err != nil {
		return atrdisk.ErrIOFailed.Wrap(err)
	}
	return nil
}

// CreateImage writes a blank image to a new file at `path`, replacing any file
// that's already there. See [FormatImage].
func CreateImage(path string, layout disks.Layout, boot []byte) error {
	image, err := FormatImage(layout, boot)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, image, 0o644)
	if err != nil {
		return atrdisk.ErrIOFailed.WithMessage(path).Wrap(err)
	}
	return nil
}
