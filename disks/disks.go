// Package disks describes the physical layouts an Atari DOS 2 image can have
// and the ATR container the images are stored in.
package disks

import (
	_ "embed"
	"fmt"

	"github.com/dargueta/atrdisk"
	"github.com/gocarina/gocsv"
)

// Layout identifies one of the three fixed disk geometries.
type Layout int

const (
	// LayoutAuto tells the resolver to infer the layout from the image size.
	LayoutAuto Layout = iota
	SingleDensity
	EnhancedDensity
	DoubleDensity
)

var layoutSlugs = map[Layout]string{
	SingleDensity:   "sd",
	EnhancedDensity: "ed",
	DoubleDensity:   "dd",
}

func (layout Layout) String() string {
	slug, ok := layoutSlugs[layout]
	if ok {
		return slug
	}
	if layout == LayoutAuto {
		return "auto"
	}
	return fmt.Sprintf("Layout(%d)", int(layout))
}

// ParseLayout converts a slug such as "sd" into a [Layout]. "auto" and the
// empty string both give [LayoutAuto].
func ParseLayout(slug string) (Layout, error) {
	if slug == "" || slug == "auto" {
		return LayoutAuto, nil
	}
	for layout, layoutSlug := range layoutSlugs {
		if layoutSlug == slug {
			return layout, nil
		}
	}
	return LayoutAuto, atrdisk.ErrInvalidArgument.WithMessage(
		fmt.Sprintf("unknown layout %q; expected sd, ed, dd, or auto", slug))
}

////////////////////////////////////////////////////////////////////////////////
// Geometry

type DiskGeometry struct {
	Layout Layout `csv:"-"`
	Slug   string `csv:"slug"`
	Name   string `csv:"name"`

	// BytesPerSector is the size of a normal sector. The boot sectors may be
	// smaller; see BytesPerBootSector.
	BytesPerSector     uint `csv:"bytes_per_sector"`
	BootSectors        uint `csv:"boot_sectors"`
	BytesPerBootSector uint `csv:"bytes_per_boot_sector"`

	// TotalSectors is the number of sectors physically present in the image.
	TotalSectors uint `csv:"total_sectors"`
	// AddressableSectors is the number of bits in the allocation bitmap. Sector
	// numbers at or above this can never hold file data.
	AddressableSectors uint `csv:"addressable_sectors"`
	// NominalUsableSectors is the value DOS writes into the VTOC header, which
	// is also the number of free sectors on a freshly formatted disk.
	NominalUsableSectors uint `csv:"nominal_usable_sectors"`

	VTOCSector uint `csv:"vtoc_sector"`
	// VTOC2Sector is the sector holding the bitmap extension, or 0 if the
	// layout doesn't have one.
	VTOC2Sector      uint `csv:"vtoc2_sector"`
	DirectorySector  uint `csv:"directory_sector"`
	DirectorySectors uint `csv:"directory_sectors"`
	// BoundarySector is a sector DOS 2.5 never allocates, kept for backwards
	// compatibility with DOS 2.0. 0 if there's no such sector.
	BoundarySector uint   `csv:"boundary_sector"`
	DOSVersion     uint   `csv:"dos_version"`
	Notes          string `csv:"notes"`
}

// PayloadSize gives the number of file data bytes a data sector can hold. The
// last three bytes of every data sector are the chain link.
func (g *DiskGeometry) PayloadSize() uint {
	return g.BytesPerSector - 3
}

// OwnerOffset is the offset of the byte holding the owner ID in its upper six
// bits and the two high bits of the next-sector pointer in its lower two.
func (g *DiskGeometry) OwnerOffset() uint {
	return g.PayloadSize()
}

// NextLowOffset is the offset of the low eight bits of the next-sector pointer.
func (g *DiskGeometry) NextLowOffset() uint {
	return g.PayloadSize() + 1
}

// ByteCountOffset is the offset of the number of valid data bytes in a sector.
func (g *DiskGeometry) ByteCountOffset() uint {
	return g.PayloadSize() + 2
}

// SectorSize gives the size of the given sector, in bytes. Boot sectors in a
// double-density image are smaller than the rest.
func (g *DiskGeometry) SectorSize(sector uint) uint {
	if sector >= 1 && sector <= g.BootSectors {
		return g.BytesPerBootSector
	}
	return g.BytesPerSector
}

// DataSize gives the size of the sector data of an image in this layout, not
// counting the container header.
func (g *DiskGeometry) DataSize() int64 {
	return int64(g.BootSectors*g.BytesPerBootSector) +
		int64(g.TotalSectors-g.BootSectors)*int64(g.BytesPerSector)
}

// ExpandedDataSize is like DataSize, except it assumes the boot sectors are
// stored at full width. Some tools write double-density images this way.
func (g *DiskGeometry) ExpandedDataSize() int64 {
	return int64(g.TotalSectors) * int64(g.BytesPerSector)
}

// IsReserved returns true if DOS never allocates the given sector to a file.
// Sector 0 doesn't exist, and is reserved too.
func (g *DiskGeometry) IsReserved(sector uint) bool {
	switch {
	case sector <= g.BootSectors:
		return true
	case sector == g.VTOCSector:
		return true
	case g.VTOC2Sector != 0 && sector == g.VTOC2Sector:
		return true
	case sector >= g.DirectorySector && sector < g.DirectorySector+g.DirectorySectors:
		return true
	case g.BoundarySector != 0 && sector == g.BoundarySector:
		return true
	}
	return false
}

////////////////////////////////////////////////////////////////////////////////

//go:embed layouts.csv
var layoutsRawCSV string
var diskGeometries map[Layout]DiskGeometry

// GetLayoutGeometry returns the geometry profile of a layout. [LayoutAuto] is
// not a layout and gives an error.
func GetLayoutGeometry(layout Layout) (DiskGeometry, error) {
	geometry, ok := diskGeometries[layout]
	if ok {
		return geometry, nil
	}

	return DiskGeometry{}, atrdisk.ErrUnknownGeometry.WithMessage(
		fmt.Sprintf("no geometry for layout %s", layout))
}

// ResolveLayout determines the layout of an image from the size of its sector
// data. If `override` is anything other than [LayoutAuto], it's returned as-is
// without looking at the size.
func ResolveLayout(dataSize int64, override Layout) (Layout, error) {
	if override != LayoutAuto {
		_, err := GetLayoutGeometry(override)
		if err != nil {
			return LayoutAuto, err
		}
		return override, nil
	}

	if dataSize < 0 {
		return LayoutAuto, atrdisk.ErrUnknownGeometry.WithMessage(
			fmt.Sprintf("negative image size %d", dataSize))
	}

	single := diskGeometries[SingleDensity]
	enhanced := diskGeometries[EnhancedDensity]
	double := diskGeometries[DoubleDensity]

	// Anything too small to be enhanced density is single density, whether it's
	// truncated or has trailing bytes. Reads past the end fail when they happen.
	if dataSize < enhanced.DataSize() {
		return SingleDensity, nil
	}
	if dataSize < double.DataSize() {
		return EnhancedDensity, nil
	}
	if dataSize == double.DataSize() || dataSize == double.ExpandedDataSize() {
		return DoubleDensity, nil
	}

	return LayoutAuto, atrdisk.ErrUnknownGeometry.WithMessage(
		fmt.Sprintf(
			"image data is %d bytes; expected under %d for %s, under %d for %s, or exactly %d or %d for %s",
			dataSize,
			enhanced.DataSize(),
			single.Slug,
			double.DataSize(),
			enhanced.Slug,
			double.DataSize(),
			double.ExpandedDataSize(),
			double.Slug))
}

func init() {
	var rows []DiskGeometry
	err := gocsv.UnmarshalString(layoutsRawCSV, &rows)
	if err != nil {
		panic(fmt.Errorf("failed to decode layout table: %w", err))
	}

	diskGeometries = make(map[Layout]DiskGeometry, len(rows))
	for i, row := range rows {
		layout, err := ParseLayout(row.Slug)
		if err != nil || layout == LayoutAuto {
			panic(fmt.Errorf("bad layout slug %q on row %d", row.Slug, i+1))
		}

		_, exists := diskGeometries[layout]
		if exists {
			panic(fmt.Errorf("duplicate definition for layout %q on row %d", row.Slug, i+1))
		}

		row.Layout = layout
		diskGeometries[layout] = row
	}
}
