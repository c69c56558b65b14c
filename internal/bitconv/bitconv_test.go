package bitconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundTrip(t *testing.T) {
	tests := [][]byte{
		[]byte("a"),
		[]byte("Hello World"),
		[]byte("こんにちは"),
		{0x00, 0xff, 0x01},
	}
	for _, b := range tests {
		bits := BytesToBools(b)
		assert.Len(t, bits, len(b)*8)
		assert.Equal(t, b, BoolsToBytes(bits))
	}
}

func TestBoolsToBytesPadding(t *testing.T) {
	bits := []bool{true, false, true}
	assert.Equal(t, []byte{0b101_00000}, BoolsToBytes(bits))
}
