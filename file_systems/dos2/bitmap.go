package dos2

import (
	"encoding/binary"
	"fmt"

	"github.com/boljen/go-bitmap"
	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
	c "github.com/dargueta/atrdisk/file_systems/common"
)

// Offsets of fields in the VTOC sector.
const (
	vtocTypeCodeOffset    = 0
	vtocNominalOffset     = 1
	vtocFreeCountOffset   = 3
	vtocBitmapOffset      = 10
	vtocPrimaryBitmapSize = 90
)

// Offsets of fields in the second VTOC of enhanced-density images. The first
// 84 bytes repeat the primary bitmap's entries for sectors 48-719; the bitmap
// for sectors 720-1023 follows immediately after.
const (
	vtoc2FirstSector     = 48
	vtoc2MirrorSize      = 84
	vtoc2ExtensionSize   = 38
	vtoc2FreeCountOffset = 122
)

// primarySectors is the number of sectors covered by the VTOC's own bitmap.
const primarySectors = vtocPrimaryBitmapSize * 8

// Bitmap is the free-space map of an image, one bit per addressable sector. A
// set bit means the sector is free. Sector 0 never exists and is always marked
// allocated on a well-formed disk.
type Bitmap struct {
	free bitmap.Bitmap
	size uint
}

// NewBitmap creates a bitmap covering `size` sectors, all of them allocated.
func NewBitmap(size uint) *Bitmap {
	return &Bitmap{free: bitmap.New(int(size)), size: size}
}

// Len gives the number of sectors the bitmap covers.
func (bm *Bitmap) Len() uint {
	return bm.size
}

// IsFree returns true if the sector is marked free. Sectors outside the bitmap
// can never be allocated, so they're never free.
func (bm *Bitmap) IsFree(sector c.Sector) bool {
	if uint(sector) >= bm.size {
		return false
	}
	return bm.free.Get(int(sector))
}

// Mark flips the allocation state of a single sector. Sectors outside the
// bitmap are ignored; callers are expected to pass sectors in range.
func (bm *Bitmap) Mark(sector c.Sector, allocate bool) {
	if uint(sector) >= bm.size {
		return
	}
	bm.free.Set(int(sector), !allocate)
}

// FreeCount gives the total number of free sectors.
func (bm *Bitmap) FreeCount() uint {
	return bm.freeCountInRange(0, bm.size)
}

// freeCountInRange counts free sectors in [start, end).
func (bm *Bitmap) freeCountInRange(start, end uint) uint {
	if end > bm.size {
		end = bm.size
	}
	total := uint(0)
	for i := start; i < end; i++ {
		if bm.free.Get(int(i)) {
			total++
		}
	}
	return total
}

// Equal returns true if both bitmaps cover the same sectors and agree on every
// one of them.
func (bm *Bitmap) Equal(other *Bitmap) bool {
	if bm.size != other.size {
		return false
	}
	for i := 0; i < int(bm.size); i++ {
		if bm.free.Get(i) != other.free.Get(i) {
			return false
		}
	}
	return true
}

// decodeBitmapBytes reads on-disk bitmap bytes, most significant bit first, into
// `bm`, starting at sector `firstSector`.
func decodeBitmapBytes(bm *Bitmap, raw []byte, firstSector uint) {
	for i := uint(0); i < uint(len(raw))*8; i++ {
		sector := firstSector + i
		if sector >= bm.size {
			return
		}
		isFree := raw[i/8]&(0x80>>(i%8)) != 0
		bm.free.Set(int(sector), isFree)
	}
}

// encodeBitmapBytes is the inverse of [decodeBitmapBytes]. Bits for sectors
// past the end of the bitmap are written as allocated.
func encodeBitmapBytes(bm *Bitmap, raw []byte, firstSector uint) {
	for i := uint(0); i < uint(len(raw))*8; i++ {
		mask := byte(0x80 >> (i % 8))
		if bm.IsFree(c.Sector(firstSector + i)) {
			raw[i/8] |= mask
		} else {
			raw[i/8] &^= mask
		}
	}
}

////////////////////////////////////////////////////////////////////////////////

// LoadBitmap reads the free-space bitmap from the VTOC, and for enhanced-density
// images, the second VTOC. The mirrored copy of the primary bitmap in the second
// VTOC is ignored.
//
// If `check` is true, the VTOC header fields are validated and each problem is
// passed to `reporter`, which may approve a repair. Approved repairs rewrite the
// affected sector immediately. `reporter` may be nil if `check` is false.
func (session *Session) LoadBitmap(check bool, reporter *Reporter) (*Bitmap, error) {
	geometry := &session.geometry
	bm := NewBitmap(geometry.AddressableSectors)

	vtoc, err := session.ReadSector(c.Sector(geometry.VTOCSector))
	if err != nil {
		return nil, err
	}
	decodeBitmapBytes(
		bm, vtoc[vtocBitmapOffset:vtocBitmapOffset+vtocPrimaryBitmapSize], 0)

	var vtoc2 []byte
	if geometry.VTOC2Sector != 0 {
		vtoc2, err = session.ReadSector(c.Sector(geometry.VTOC2Sector))
		if err != nil {
			return nil, err
		}
		decodeBitmapBytes(
			bm,
			vtoc2[vtoc2MirrorSize:vtoc2MirrorSize+vtoc2ExtensionSize],
			primarySectors)
	}

	if !check {
		return bm, nil
	}
	if reporter == nil {
		reporter = NewReporter(nil)
	}

	if !session.flags.CanWrite() {
		reporter.disableRepairs()
	}
	session.checkVTOCHeader(bm, vtoc, reporter)
	if vtoc2 != nil {
		session.checkVTOC2Header(bm, vtoc2, reporter)
	}
	return bm, nil
}

func (session *Session) checkVTOCHeader(bm *Bitmap, vtoc []byte, reporter *Reporter) {
	geometry := &session.geometry
	vtocSector := c.Sector(geometry.VTOCSector)
	rewriteVTOC := func() error {
		return session.WriteSector(vtocSector, vtoc)
	}

	storedFree := uint(binary.LittleEndian.Uint16(vtoc[vtocFreeCountOffset:]))
	actualFree := bm.freeCountInRange(0, primarySectors)
	if storedFree != actualFree {
		finding := Finding{
			Kind:     FreeCountMismatch,
			Severity: SeverityError,
			Sector:   vtocSector,
			Entry:    -1,
			Message: fmt.Sprintf(
				"VTOC says %d sectors are free, bitmap has %d", storedFree, actualFree),
		}
		reporter.offer(finding, func() error {
			binary.LittleEndian.PutUint16(vtoc[vtocFreeCountOffset:], uint16(actualFree))
			return rewriteVTOC()
		})
	}

	storedNominal := uint(binary.LittleEndian.Uint16(vtoc[vtocNominalOffset:]))
	if storedNominal != geometry.NominalUsableSectors {
		finding := Finding{
			Kind:     NominalCountMismatch,
			Severity: SeverityWarning,
			Sector:   vtocSector,
			Entry:    -1,
			Message: fmt.Sprintf(
				"VTOC says the disk has %d usable sectors, expected %d for %s",
				storedNominal,
				geometry.NominalUsableSectors,
				geometry.Name),
		}
		reporter.offer(finding, func() error {
			binary.LittleEndian.PutUint16(
				vtoc[vtocNominalOffset:], uint16(geometry.NominalUsableSectors))
			return rewriteVTOC()
		})
	}

	if uint(vtoc[vtocTypeCodeOffset]) != geometry.DOSVersion {
		finding := Finding{
			Kind:     TypeCodeMismatch,
			Severity: SeverityWarning,
			Sector:   vtocSector,
			Entry:    -1,
			Message: fmt.Sprintf(
				"VTOC type code is %d, expected %d",
				vtoc[vtocTypeCodeOffset],
				geometry.DOSVersion),
		}
		reporter.offer(finding, func() error {
			vtoc[vtocTypeCodeOffset] = byte(geometry.DOSVersion)
			return rewriteVTOC()
		})
	}
}

func (session *Session) checkVTOC2Header(bm *Bitmap, vtoc2 []byte, reporter *Reporter) {
	vtoc2Sector := c.Sector(session.geometry.VTOC2Sector)
	storedFree := uint(binary.LittleEndian.Uint16(vtoc2[vtoc2FreeCountOffset:]))
	actualFree := bm.freeCountInRange(primarySectors, bm.size)
	if storedFree == actualFree {
		return
	}

	finding := Finding{
		Kind:     ExtFreeCountMismatch,
		Severity: SeverityError,
		Sector:   vtoc2Sector,
		Entry:    -1,
		Message: fmt.Sprintf(
			"VTOC2 says %d sectors past %d are free, bitmap has %d",
			storedFree,
			primarySectors-1,
			actualFree),
	}
	reporter.offer(finding, func() error {
		binary.LittleEndian.PutUint16(vtoc2[vtoc2FreeCountOffset:], uint16(actualFree))
		return session.WriteSector(vtoc2Sector, vtoc2)
	})
}

// StoreBitmap writes `bm` back to the VTOC (and second VTOC, if the layout has
// one), recomputing the free counts. The type code and nominal sector count are
// left alone.
func (session *Session) StoreBitmap(bm *Bitmap) error {
	geometry := &session.geometry
	if bm.size != geometry.AddressableSectors {
		return errBitmapSize(bm.size, geometry)
	}

	vtocSector := c.Sector(geometry.VTOCSector)
	vtoc, err := session.ReadSector(vtocSector)
	if err != nil {
		return err
	}

	encodeBitmapBytes(
		bm, vtoc[vtocBitmapOffset:vtocBitmapOffset+vtocPrimaryBitmapSize], 0)
	binary.LittleEndian.PutUint16(
		vtoc[vtocFreeCountOffset:], uint16(bm.freeCountInRange(0, primarySectors)))

	err = session.WriteSector(vtocSector, vtoc)
	if err != nil {
		return err
	}

	if geometry.VTOC2Sector == 0 {
		return nil
	}

	vtoc2Sector := c.Sector(geometry.VTOC2Sector)
	vtoc2, err := session.ReadSector(vtoc2Sector)
	if err != nil {
		return err
	}

	// The mirror and the extension are one contiguous run of bits starting at
	// sector 48.
	encodeBitmapBytes(
		bm, vtoc2[:vtoc2MirrorSize+vtoc2ExtensionSize], vtoc2FirstSector)
	binary.LittleEndian.PutUint16(
		vtoc2[vtoc2FreeCountOffset:],
		uint16(bm.freeCountInRange(primarySectors, bm.size)))
	return session.WriteSector(vtoc2Sector, vtoc2)
}

func errBitmapSize(size uint, geometry *disks.DiskGeometry) error {
	return atrdisk.ErrInvalidArgument.WithMessage(
		fmt.Sprintf(
			"bitmap covers %d sectors but %s images have %d",
			size,
			geometry.Name,
			geometry.AddressableSectors))
}
