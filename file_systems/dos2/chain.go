package dos2

import (
	"fmt"

	"github.com/dargueta/atrdisk"
	c "github.com/dargueta/atrdisk/file_systems/common"
)

// MaxChainHops is the most sectors a chain is followed through before it's
// assumed to loop forever. No real file comes close; the largest possible file
// on an enhanced-density disk is about half of this.
const MaxChainHops = 2048

// sectorLink is the metadata at the end of every data sector.
type sectorLink struct {
	Owner c.FileIndex
	Next  c.Sector
	// ByteCount is the number of bytes of file data in the sector.
	ByteCount uint
}

func (session *Session) decodeLink(data []byte) sectorLink {
	geometry := &session.geometry
	ownerByte := data[geometry.OwnerOffset()]
	return sectorLink{
		Owner: c.FileIndex(ownerByte >> 2),
		Next: c.Sector(uint(ownerByte&0x03)<<8 |
			uint(data[geometry.NextLowOffset()])),
		ByteCount: uint(data[geometry.ByteCountOffset()]),
	}
}

func (session *Session) encodeLink(data []byte, link sectorLink) {
	geometry := &session.geometry
	data[geometry.OwnerOffset()] = byte(link.Owner<<2) | byte(link.Next>>8)&0x03
	data[geometry.NextLowOffset()] = byte(link.Next)
	data[geometry.ByteCountOffset()] = byte(link.ByteCount)
}

// SectorsNeeded gives the number of data sectors a file of `size` bytes takes
// up. Empty files still take one sector.
func (session *Session) SectorsNeeded(size int) uint {
	payload := int(session.geometry.PayloadSize())
	if size <= 0 {
		return 1
	}
	return uint((size + payload - 1) / payload)
}

// chainVisitor is called for each sector in a chain, with the sector's raw
// contents and decoded link. Returning true stops the walk.
type chainVisitor func(sector c.Sector, data []byte, link sectorLink) (bool, error)

// walkChain follows a chain starting at `first` until it ends, `visit` stops
// it, or it exceeds [MaxChainHops].
func (session *Session) walkChain(first c.Sector, visit chainVisitor) error {
	sector := first
	for hops := 0; sector != c.NoSector; hops++ {
		if hops >= MaxChainHops {
			return atrdisk.ErrChainTooLong.WithMessage(
				fmt.Sprintf("chain starting at sector %d", first))
		}

		data, err := session.ReadSector(sector)
		if err != nil {
			return err
		}
		if uint(len(data)) < session.geometry.BytesPerSector {
			return atrdisk.ErrFileSystemCorrupted.WithMessage(
				fmt.Sprintf(
					"chain starting at sector %d runs into boot sector %d",
					first,
					sector))
		}

		link := session.decodeLink(data)
		stop, err := visit(sector, data, link)
		if err != nil || stop {
			return err
		}
		sector = link.Next
	}
	return nil
}

// ReadChain returns the contents of the file whose data begins at `first`.
// Byte counts larger than a sector's payload are treated as a full sector.
func (session *Session) ReadChain(first c.Sector) ([]byte, error) {
	payloadSize := session.geometry.PayloadSize()
	contents := []byte{}

	err := session.walkChain(
		first,
		func(sector c.Sector, data []byte, link sectorLink) (bool, error) {
			count := link.ByteCount
			if count > payloadSize {
				count = payloadSize
			}
			contents = append(contents, data[:count]...)
			return false, nil
		},
	)
	if err != nil {
		return nil, err
	}
	return contents, nil
}

// chainSectors returns the sectors of a chain in order.
func (session *Session) chainSectors(first c.Sector) ([]c.Sector, error) {
	sectors := []c.Sector{}
	err := session.walkChain(
		first,
		func(sector c.Sector, data []byte, link sectorLink) (bool, error) {
			sectors = append(sectors, sector)
			return false, nil
		},
	)
	return sectors, err
}

// WriteChain allocates sectors from `bm` for `data`, writes the data to them
// tagged with `owner`, and returns the first sector of the chain.
//
// If there isn't enough space it fails with [atrdisk.ErrNoSpaceOnDevice] and
// nothing is allocated. If a sector fails to be written, the sectors allocated
// for this chain are released from `bm` before returning. Either way, the
// caller is responsible for writing `bm` back to the image.
func (session *Session) WriteChain(bm *Bitmap, data []byte, owner c.FileIndex) (c.Sector, error) {
	err := session.checkWritable()
	if err != nil {
		return c.NoSector, err
	}
	if owner > c.MaxFileIndex {
		return c.NoSector, atrdisk.ErrInvalidArgument.WithMessage(
			fmt.Sprintf("owner %d doesn't fit in six bits", owner))
	}

	count := session.SectorsNeeded(len(data))
	sectors, err := Allocate(bm, count)
	if err != nil {
		return c.NoSector, err
	}

	payloadSize := int(session.geometry.PayloadSize())
	for i, sector := range sectors {
		start := i * payloadSize
		end := start + payloadSize
		if end > len(data) {
			end = len(data)
		}

		buffer := make([]byte, session.geometry.BytesPerSector)
		copy(buffer, data[start:end])

		link := sectorLink{Owner: owner, ByteCount: uint(end - start)}
		if i+1 < len(sectors) {
			link.Next = sectors[i+1]
		}
		session.encodeLink(buffer, link)

		err = session.WriteSector(sector, buffer)
		if err != nil {
			Release(bm, sectors)
			return c.NoSector, err
		}
	}
	return sectors[0], nil
}

// DeleteChain frees every sector of the chain starting at `first` in `bm`. The
// sectors themselves aren't touched. If the chain can't be followed to its end,
// nothing is freed.
func (session *Session) DeleteChain(bm *Bitmap, first c.Sector) error {
	sectors, err := session.chainSectors(first)
	if err != nil {
		return err
	}
	for _, sector := range sectors {
		bm.Mark(sector, false)
	}
	return nil
}
