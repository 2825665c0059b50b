package compression_test

import (
	"bytes"
	"io"
	"testing"

	c "github.com/dargueta/atrdisk/utilities/compression"
	"github.com/stretchr/testify/assert"
)

type groupTest struct {
	Name     string
	Data     []byte
	Expected c.ByteRun
}

var groupTests = []groupTest{
	{"empty", []byte{}, c.InvalidRLERun},
	{"two initial", []byte{0, 0, 1, 0, 0, 0, 0}, c.ByteRun{Byte: 0, RunLength: 2}},
	{"one byte", []byte{6, 1, 5, 20, 31}, c.ByteRun{Byte: 6, RunLength: 1}},
	{"entire run", []byte{9, 9, 9, 9, 9, 9}, c.ByteRun{Byte: 9, RunLength: 6}},
}

func TestRLEGrouper__FirstRun(t *testing.T) {
	for _, test := range groupTests {
		t.Run(
			test.Name,
			func(t *testing.T) {
				grouper := c.NewRLEGrouper(bytes.NewReader(test.Data))
				run, _ := grouper.GetNextRun()
				assert.Equal(t, test.Expected, run)
			},
		)
	}
}

func TestRLEGrouper__Sequence(t *testing.T) {
	data := []byte{1, 9, 4, 4, 4, 4, 4, 6, 6, 0, 1, 0, 0, 0}
	expected := []c.ByteRun{
		{Byte: 1, RunLength: 1},
		{Byte: 9, RunLength: 1},
		{Byte: 4, RunLength: 5},
		{Byte: 6, RunLength: 2},
		{Byte: 0, RunLength: 1},
		{Byte: 1, RunLength: 1},
		{Byte: 0, RunLength: 3},
	}

	grouper := c.NewRLEGrouper(bytes.NewReader(data))
	for i, expectedRun := range expected {
		run, err := grouper.GetNextRun()
		assert.NoErrorf(t, err, "run %d", i)
		assert.Equalf(t, expectedRun, run, "run %d", i)
	}

	run, err := grouper.GetNextRun()
	assert.Equal(t, c.InvalidRLERun, run)
	assert.ErrorIs(t, err, io.EOF)
}
