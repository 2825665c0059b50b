package dos2

import (
	"fmt"
	"io"

	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
	c "github.com/dargueta/atrdisk/file_systems/common"
)

// sectorOffset returns the absolute offset of a sector in the image stream and
// the number of bytes in it.
func (session *Session) sectorOffset(sector c.Sector) (int64, uint, error) {
	if sector == c.NoSector || uint(sector) > session.geometry.TotalSectors {
		return 0, 0, atrdisk.ErrInvalidSector.WithMessage(
			fmt.Sprintf(
				"sector %d not in [1, %d]", sector, session.geometry.TotalSectors))
	}

	size := session.geometry.SectorSize(uint(sector))
	index := int64(sector) - 1
	bootSectors := int64(session.geometry.BootSectors)
	fullWidth := int64(session.geometry.BytesPerSector)

	var offset int64
	switch {
	case session.geometry.BytesPerBootSector == session.geometry.BytesPerSector:
		offset = index * fullWidth
	case session.expanded:
		// Boot sectors take up a full-width slot but only the first part of it
		// is meaningful.
		offset = index * fullWidth
	case index < bootSectors:
		offset = index * int64(session.geometry.BytesPerBootSector)
	default:
		offset = bootSectors*int64(session.geometry.BytesPerBootSector) +
			(index-bootSectors)*fullWidth
	}
	return disks.HeaderSize + offset, size, nil
}

// ReadSector returns the contents of a sector. The returned slice is always the
// size of the sector; boot sectors on double-density images are 128 bytes.
func (session *Session) ReadSector(sector c.Sector) ([]byte, error) {
	offset, size, err := session.sectorOffset(sector)
	if err != nil {
		return nil, err
	}
	if session.closed {
		return nil, atrdisk.ErrIOFailed.WithMessage("session is closed")
	}

	_, err = session.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return nil, atrdisk.ErrIOFailed.WithMessage(
			fmt.Sprintf("seek to sector %d", sector)).Wrap(err)
	}

	buffer := make([]byte, size)
	_, err = io.ReadFull(session.stream, buffer)
	if err != nil {
		return nil, atrdisk.ErrIOFailed.WithMessage(
			fmt.Sprintf("read sector %d", sector)).Wrap(err)
	}
	return buffer, nil
}

// WriteSector overwrites a sector. `data` must be exactly the size of the
// sector.
func (session *Session) WriteSector(sector c.Sector, data []byte) error {
	offset, size, err := session.sectorOffset(sector)
	if err != nil {
		return err
	}
	err = session.checkWritable()
	if err != nil {
		return err
	}
	if uint(len(data)) != size {
		return atrdisk.ErrInvalidArgument.WithMessage(
			fmt.Sprintf(
				"sector %d is %d bytes, got %d bytes of data", sector, size, len(data)))
	}

	_, err = session.stream.Seek(offset, io.SeekStart)
	if err != nil {
		return atrdisk.ErrIOFailed.WithMessage(
			fmt.Sprintf("seek to sector %d", sector)).Wrap(err)
	}

	_, err = session.stream.Write(data)
	if err != nil {
		return atrdisk.ErrIOFailed.WithMessage(
			fmt.Sprintf("write sector %d", sector)).Wrap(err)
	}
	return nil
}
