package markcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		seed    int64
	}{
		{"short", "a", DefaultSeed},
		{"token", "WM-abc", DefaultSeed},
		{"uuid_like", "WM-9f2c7a4e-1d3b-4f5a-8e6c-0a1b2c3d4e5f", DefaultSeed},
		{"multibyte", "すかし", DefaultSeed},
		{"custom_seed", "WM-abc", 987654321},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := []byte(tt.payload)
			bits := Encode(payload, tt.seed)
			assert.Len(t, bits, EncodedBits(len(payload)))

			decoded, err := Decode(bits, len(payload), tt.seed)
			require.NoError(t, err)
			assert.Equal(t, payload, decoded)
		})
	}
}

func TestDecodeCorrectsBitErrors(t *testing.T) {
	payload := []byte("WM-abc")
	bits := Encode(payload, DefaultSeed)
	// Golay(24,12) corrects up to 3 errors per code word; flip a few
	// well-separated bits
	for _, i := range []int{0, len(bits) / 2, len(bits) - 1} {
		bits[i] = !bits[i]
	}
	decoded, err := Decode(bits, len(payload), DefaultSeed)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecodeWrongSeed(t *testing.T) {
	payload := []byte("WM-abc")
	bits := Encode(payload, DefaultSeed)
	decoded, err := Decode(bits, len(payload), DefaultSeed+1)
	if err == nil {
		assert.NotEqual(t, payload, decoded)
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	_, err := Decode(make([]bool, 10), 6, DefaultSeed)
	assert.ErrorIs(t, err, ErrShortMark)
}

func TestEncodedBits(t *testing.T) {
	// 1 byte = 8 bits -> one 12-bit block -> 24 encoded bits
	assert.Equal(t, 24, EncodedBits(1))
	// 6 bytes = 48 bits -> four blocks -> 96 encoded bits
	assert.Equal(t, 96, EncodedBits(6))
}

func TestShuffleInvertible(t *testing.T) {
	bits := make([]bool, 96)
	for i := range bits {
		bits[i] = i%3 == 0
	}
	shuffled := shuffle(bits, DefaultSeed)
	assert.NotEqual(t, bits, shuffled)
	assert.Equal(t, bits, unshuffle(shuffled, DefaultSeed))
}
