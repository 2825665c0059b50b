package disks

import (
	"testing"

	"github.com/dargueta/atrdisk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderBytes(t *testing.T) {
	header := NewHeader(92160, 128)
	assert.Equal(
		t,
		[]byte{0x96, 0x02, 0x80, 0x16, 0x80, 0x00, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		header.Bytes())
}

func TestHeaderRoundTrip(t *testing.T) {
	for _, layout := range []Layout{SingleDensity, EnhancedDensity, DoubleDensity} {
		geometry, err := GetLayoutGeometry(layout)
		require.NoError(t, err)

		header := NewHeader(geometry.DataSize(), geometry.BytesPerSector)
		parsed, err := ParseHeader(header.Bytes())
		require.NoError(t, err)
		assert.Equal(t, header, parsed)
		assert.Equal(t, geometry.DataSize(), parsed.DataSize())
	}
}

func TestHeaderHighParagraphByte(t *testing.T) {
	// 0x12345 paragraphs doesn't fit in the low word.
	header := Header{Paragraphs: 0x12345, BytesPerSector: 256}
	raw := header.Bytes()
	assert.EqualValues(t, 0x45, raw[2])
	assert.EqualValues(t, 0x23, raw[3])
	assert.EqualValues(t, 0x01, raw[6])

	parsed, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 0x12345, parsed.Paragraphs)
	assert.Equal(t, DoubleDensity, parsed.LayoutHint())
}

func TestParseHeader__BadMagic(t *testing.T) {
	raw := make([]byte, HeaderSize)
	_, err := ParseHeader(raw)
	assert.ErrorIs(t, err, atrdisk.ErrUnknownGeometry)

	_, err = ParseHeader([]byte{0x96, 0x02})
	assert.ErrorIs(t, err, atrdisk.ErrUnknownGeometry)
}

func TestHeaderBytes__LargestValues(t *testing.T) {
	header := Header{Paragraphs: 0xffffff, BytesPerSector: 0xffff}
	raw := header.Bytes()
	require.Len(t, raw, HeaderSize)
	assert.Equal(t, []byte{0x96, 0x02, 0xff, 0xff, 0xff, 0xff, 0xff}, raw[:7])
	assert.Equal(t, make([]byte, HeaderSize-7), raw[7:], "padding must stay zeroed")

	parsed, err := ParseHeader(raw)
	require.NoError(t, err)
	assert.Equal(t, header, parsed)
}
