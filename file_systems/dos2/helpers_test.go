package dos2

import (
	"io"
	"testing"

	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
	c "github.com/dargueta/atrdisk/file_systems/common"
	disktest "github.com/dargueta/atrdisk/testing"
	"github.com/stretchr/testify/require"
)

const fixtureThreeFiles = "testdata/sd_three_files.atr.rle.gz"

// newFormattedImage creates a blank image of the given layout and mounts it. The
// stream is returned too so tests can inspect the raw bytes.
func newFormattedImage(t *testing.T, layout disks.Layout) (*Session, io.ReadWriteSeeker) {
	image, err := FormatImage(layout, nil)
	require.NoError(t, err, "formatting failed")

	stream := disktest.NewImageStream(image)
	session, err := Open(stream, Options{})
	require.NoError(t, err, "failed to mount freshly formatted image")
	require.Equal(t, layout, session.Layout())

	t.Cleanup(func() { session.Close() })
	return session, stream
}

func loadFixture(t *testing.T, path string, flags atrdisk.MountFlags) (*Session, io.ReadWriteSeeker) {
	geometry, err := disks.GetLayoutGeometry(disks.SingleDensity)
	require.NoError(t, err)

	stream := disktest.LoadDiskImageFile(t, path, disks.HeaderSize+geometry.DataSize())
	session, err := Open(stream, Options{Flags: flags})
	require.NoError(t, err)

	t.Cleanup(func() { session.Close() })
	return session, stream
}

func freeSectors(t *testing.T, session *Session) uint {
	bm, err := session.LoadBitmap(false, nil)
	require.NoError(t, err)
	return bm.FreeCount()
}

// patternData returns `size` bytes that don't repeat on sector boundaries, so
// misplaced chunks are caught.
func patternData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func readLink(t *testing.T, session *Session, sector c.Sector) sectorLink {
	data, err := session.ReadSector(sector)
	require.NoError(t, err)
	return session.decodeLink(data)
}

func approveAll(Finding) bool {
	return true
}

func findingsOfKind(report *Report, kind FindingKind) []Finding {
	result := []Finding{}
	for _, finding := range report.Findings {
		if finding.Kind == kind {
			result = append(result, finding)
		}
	}
	return result
}

func readImage(t *testing.T, stream io.ReadSeeker) []byte {
	return disktest.ReadAll(t, stream)
}

// cloneBitmap returns an independent copy of `bm`.
func cloneBitmap(bm *Bitmap) *Bitmap {
	clone := NewBitmap(bm.size)
	copy(clone.free, bm.free)
	return clone
}
