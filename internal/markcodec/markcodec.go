// Package markcodec turns watermark payload bytes into the bit sequence that
// goes into an image, and back. Payloads are Golay(24,12) encoded for error
// correction and then deterministically shuffled so that damage to one image
// region spreads across many code words instead of wiping out adjacent ones.
// The shuffle seed doubles as a lightweight access secret: extraction with a
// different seed yields garbage.
package markcodec

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/yyyoichi/bitstream-go"
	"github.com/yyyoichi/golay"
	"github.com/yyyoichi/watermark_verify/internal/bitconv"
)

// DefaultSeed mirrors the historical default shuffle seed.
const DefaultSeed int64 = 1234567890

var ErrShortMark = errors.New("markcodec: extracted mark shorter than payload")

// EncodedBits returns the mark length in bits produced by Encode for a
// payload of payloadLen bytes.
func EncodedBits(payloadLen int) int {
	return golay.EncodedBits(payloadLen * 8)
}

// Encode converts payload bytes into the shuffled, Golay-protected bit
// sequence to embed.
func Encode(payload []byte, seed int64) []bool {
	raw := bitconv.BytesToBools(payload)

	w := bitstream.NewBitWriter[uint64](0, 0)
	for _, bit := range raw {
		w.WriteBool(bit)
	}

	var encoded []uint64
	enc := golay.NewEncoder(&encoded)
	_ = enc.Encode(w.Data(), len(raw))
	n := enc.Bits()

	r := bitstream.NewBitReader(encoded, 0, 0)
	bits := make([]bool, n)
	for i := range bits {
		bits[i], _ = r.ReadBitAt(i)
	}
	return shuffle(bits, seed)
}

// Decode reverses Encode: unshuffle, Golay-decode, and truncate to
// payloadLen bytes. The bit slice must be exactly EncodedBits(payloadLen)
// long, i.e. what Extract recovered for the recorded mark length.
func Decode(bits []bool, payloadLen int, seed int64) ([]byte, error) {
	if len(bits) != EncodedBits(payloadLen) {
		return nil, fmt.Errorf("%w: got %d bits, want %d", ErrShortMark, len(bits), EncodedBits(payloadLen))
	}
	plain := unshuffle(bits, seed)

	w := bitstream.NewBitWriter[uint64](0, 0)
	for _, bit := range plain {
		w.WriteBool(bit)
	}

	var decoded []byte
	if err := golay.DecodeBinay(w.Data(), &decoded); err != nil {
		return nil, fmt.Errorf("markcodec: golay decode: %w", err)
	}
	if len(decoded) < payloadLen {
		return nil, fmt.Errorf("%w: decoded %d bytes, want %d", ErrShortMark, len(decoded), payloadLen)
	}
	return decoded[:payloadLen], nil
}

// shuffle applies the seed-determined permutation.
func shuffle(bits []bool, seed int64) []bool {
	perm := seedPerm(len(bits), seed)
	out := make([]bool, len(bits))
	for i, p := range perm {
		out[i] = bits[p]
	}
	return out
}

// unshuffle inverts shuffle for the same seed.
func unshuffle(bits []bool, seed int64) []bool {
	perm := seedPerm(len(bits), seed)
	out := make([]bool, len(bits))
	for i, p := range perm {
		out[p] = bits[i]
	}
	return out
}

func seedPerm(n int, seed int64) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rd := rand.New(rand.NewSource(seed))
	rd.Shuffle(n, func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})
	return perm
}
