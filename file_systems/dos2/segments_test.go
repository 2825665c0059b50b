package dos2

import (
	"testing"

	"github.com/dargueta/atrdisk"
	"github.com/stretchr/testify/assert"
)

type segmentTest struct {
	Name     string
	Data     []byte
	Expected []atrdisk.Segment
}

var segmentTests = []segmentTest{
	{
		Name:     "not a load file",
		Data:     []byte("HELLO WORLD\x9b"),
		Expected: nil,
	},
	{
		Name:     "too short",
		Data:     []byte{0xff, 0xff, 0x00, 0x20, 0x00},
		Expected: nil,
	},
	{
		Name:     "one segment",
		Data:     []byte{0xff, 0xff, 0x00, 0x20, 0x01, 0x20, 0xa9, 0x00},
		Expected: []atrdisk.Segment{{Start: 0x2000, End: 0x2001}},
	},
	{
		Name: "run vector",
		Data: []byte{
			0xff, 0xff, 0x00, 0x20, 0x00, 0x20, 0x60,
			0xe0, 0x02, 0xe1, 0x02, 0x00, 0x20,
		},
		Expected: []atrdisk.Segment{
			{Start: 0x2000, End: 0x2000},
			{Start: 0x2e0, End: 0x2e1, HasRun: true, Run: 0x2000},
		},
	},
	{
		Name: "run and init in one segment",
		Data: []byte{
			0xff, 0xff, 0xe0, 0x02, 0xe3, 0x02, 0x00, 0x30, 0x00, 0x40,
		},
		Expected: []atrdisk.Segment{
			{Start: 0x2e0, End: 0x2e3, HasRun: true, Run: 0x3000, HasInit: true, Init: 0x4000},
		},
	},
	{
		Name: "half a vector doesn't count",
		Data: []byte{0xff, 0xff, 0xe1, 0x02, 0xe2, 0x02, 0x30, 0x00},
		Expected: []atrdisk.Segment{
			{Start: 0x2e1, End: 0x2e2},
		},
	},
	{
		Name: "repeated marker",
		Data: []byte{
			0xff, 0xff, 0x00, 0x06, 0x00, 0x06, 0x01,
			0xff, 0xff, 0x00, 0x07, 0x00, 0x07, 0x02,
		},
		Expected: []atrdisk.Segment{
			{Start: 0x600, End: 0x600},
			{Start: 0x700, End: 0x700},
		},
	},
	{
		Name: "truncated last segment",
		Data: []byte{
			0xff, 0xff, 0x00, 0x06, 0x00, 0x06, 0x01,
			0x00, 0x07, 0x10, 0x07, 0x02,
		},
		Expected: []atrdisk.Segment{{Start: 0x600, End: 0x600}},
	},
	{
		Name: "end before start",
		Data: []byte{
			0xff, 0xff, 0x00, 0x06, 0x00, 0x06, 0x01,
			0x00, 0x07, 0x00, 0x06, 0x02,
		},
		Expected: []atrdisk.Segment{{Start: 0x600, End: 0x600}},
	},
	{
		Name:     "only a marker and padding",
		Data:     []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		Expected: []atrdisk.Segment{},
	},
}

func TestParseSegments(t *testing.T) {
	for _, test := range segmentTests {
		t.Run(
			test.Name,
			func(t *testing.T) {
				assert.Equal(t, test.Expected, ParseSegments(test.Data))
			},
		)
	}
}

func TestParseSegments__Fixture(t *testing.T) {
	session, _ := loadFixture(t, fixtureThreeFiles, atrdisk.MountFlagsReadOnly)
	data, err := session.ReadFile("game.com")
	if !assert.NoError(t, err) {
		return
	}

	segments := ParseSegments(data)
	assert.Equal(
		t,
		[]atrdisk.Segment{
			{Start: 0x2000, End: 0x2003},
			{Start: 0x2e0, End: 0x2e1, HasRun: true, Run: 0x2000},
		},
		segments)
}
