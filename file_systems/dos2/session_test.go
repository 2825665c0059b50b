package dos2

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/dargueta/atrdisk"
	"github.com/dargueta/atrdisk/disks"
	disktest "github.com/dargueta/atrdisk/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen__ResolvesLayout(t *testing.T) {
	for _, layout := range []disks.Layout{
		disks.SingleDensity, disks.EnhancedDensity, disks.DoubleDensity,
	} {
		image, err := FormatImage(layout, nil)
		require.NoError(t, err)

		session, err := Open(disktest.NewImageStream(image), Options{})
		require.NoError(t, err)
		assert.Equal(t, layout, session.Layout())
		assert.NoError(t, session.Close())
	}
}

func TestOpen__BadMagic(t *testing.T) {
	image := make([]byte, disks.HeaderSize+92160)
	_, err := Open(disktest.NewImageStream(image), Options{})
	assert.ErrorIs(t, err, atrdisk.ErrUnknownGeometry)
}

func TestOpen__TooShort(t *testing.T) {
	_, err := Open(disktest.NewImageStream([]byte{0x96, 0x02, 0}), Options{})
	assert.ErrorIs(t, err, atrdisk.ErrUnknownGeometry)
}

func TestOpen__UnknownSize(t *testing.T) {
	image := make([]byte, disks.HeaderSize+200000)
	copy(image, disks.NewHeader(200000, 128).Bytes())
	_, err := Open(disktest.NewImageStream(image), Options{})
	assert.ErrorIs(t, err, atrdisk.ErrUnknownGeometry)
}

func TestOpenFile__Missing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "nope.atr"), Options{})
	assert.ErrorIs(t, err, atrdisk.ErrIOFailed)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenFile__WritesPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disk.atr")
	require.NoError(t, CreateImage(path, disks.SingleDensity, nil))

	session, err := OpenFile(path, Options{})
	require.NoError(t, err)
	require.NoError(t, session.WriteFile("note.txt", []byte("remember")))
	require.NoError(t, session.Close())
	assert.NoError(t, session.Close(), "second close should be harmless")

	session, err = OpenFile(path, Options{Flags: atrdisk.MountFlagsReadOnly})
	require.NoError(t, err)
	defer session.Close()

	contents, err := session.ReadFile("note.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("remember"), contents)
}

func TestSectorStore__InvalidSector(t *testing.T) {
	session, _ := newFormattedImage(t, disks.SingleDensity)

	_, err := session.ReadSector(0)
	assert.ErrorIs(t, err, atrdisk.ErrInvalidSector)
	_, err = session.ReadSector(721)
	assert.ErrorIs(t, err, atrdisk.ErrInvalidSector)
	assert.ErrorIs(t, session.WriteSector(0, make([]byte, 128)), atrdisk.ErrInvalidSector)

	_, err = session.ReadSector(720)
	assert.NoError(t, err)
}

func TestSectorStore__WrongSize(t *testing.T) {
	session, _ := newFormattedImage(t, disks.SingleDensity)
	err := session.WriteSector(10, make([]byte, 127))
	assert.ErrorIs(t, err, atrdisk.ErrInvalidArgument)
}

func TestSectorStore__DoubleDensityOffsets(t *testing.T) {
	session, stream := newFormattedImage(t, disks.DoubleDensity)

	require.NoError(t, session.WriteSector(3, bytes.Repeat([]byte{0x33}, 128)))
	require.NoError(t, session.WriteSector(4, bytes.Repeat([]byte{0x44}, 256)))

	image := readImage(t, stream)
	assert.Equal(t, bytes.Repeat([]byte{0x33}, 128), image[16+256:16+384])
	assert.Equal(t, bytes.Repeat([]byte{0x44}, 256), image[16+384:16+640])
}

func TestSectorStore__ExpandedDoubleDensity(t *testing.T) {
	// Boot sectors stored at full width, as some tools write them.
	image := make([]byte, disks.HeaderSize+184320)
	copy(image, disks.NewHeader(184320, 256).Bytes())
	copy(image[16+256:], bytes.Repeat([]byte{0x22}, 128))
	copy(image[16+768:], bytes.Repeat([]byte{0x44}, 256))

	session, err := Open(disktest.NewImageStream(image), Options{})
	require.NoError(t, err)
	assert.Equal(t, disks.DoubleDensity, session.Layout())

	sector2, err := session.ReadSector(2)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x22}, 128), sector2)

	sector4, err := session.ReadSector(4)
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{0x44}, 256), sector4)
}

func TestSectorStore__TruncatedImage(t *testing.T) {
	image, err := FormatImage(disks.SingleDensity, nil)
	require.NoError(t, err)

	// Short images are accepted as single density; reading past the end fails.
	session, err := Open(disktest.NewImageStream(image[:disks.HeaderSize+400*128]), Options{})
	require.NoError(t, err)

	_, err = session.ReadSector(400)
	assert.NoError(t, err)
	_, err = session.ReadSector(401)
	assert.ErrorIs(t, err, atrdisk.ErrIOFailed)
}

func TestOpen__SingleDensityWithTrailingBytes(t *testing.T) {
	image, err := FormatImage(disks.SingleDensity, nil)
	require.NoError(t, err)
	image = append(image, make([]byte, 128)...)

	session, err := Open(disktest.NewImageStream(image), Options{})
	require.NoError(t, err)
	defer session.Close()
	assert.Equal(t, disks.SingleDensity, session.Layout())

	stat, err := session.FSStat()
	require.NoError(t, err)
	assert.EqualValues(t, 707, stat.FreeSectors)

	require.NoError(t, session.WriteFile("extra.dat", []byte("still works")))
	contents, err := session.ReadFile("extra.dat")
	require.NoError(t, err)
	assert.Equal(t, []byte("still works"), contents)
}

func TestOpen__LayoutOverride(t *testing.T) {
	image, err := FormatImage(disks.SingleDensity, nil)
	require.NoError(t, err)

	session, err := Open(
		disktest.NewImageStream(image), Options{Layout: disks.EnhancedDensity})
	require.NoError(t, err)
	assert.Equal(t, disks.EnhancedDensity, session.Layout())
}
