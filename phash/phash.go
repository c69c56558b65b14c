// Package phash computes a 64-bit perceptual fingerprint of an image and the
// Hamming distance between two fingerprints. The fingerprint captures coarse
// luminance structure: visually near-identical images land within a few bits
// of each other, while large structural edits move many bits. It carries no
// cryptographic guarantee.
package phash

import (
	"image"
	"math/bits"
	"sort"

	"golang.org/x/image/draw"

	"github.com/yyyoichi/watermark_verify/internal/engine"
)

const (
	gridSize  = 32
	blockSize = 8
)

// Fingerprint is a packed 64-bit perceptual hash.
type Fingerprint uint64

// Hash fingerprints an image: 32x32 luma downscale, 2D DCT, and the top-left
// 8x8 coefficient block thresholded against the median of its non-DC
// coefficients, packed MSB-first.
func Hash(src image.Image) Fingerprint {
	small := image.NewGray(image.Rect(0, 0, gridSize, gridSize))
	draw.CatmullRom.Scale(small, small.Rect, src, src.Bounds(), draw.Src, nil)

	data := make([]float32, gridSize*gridSize)
	for y := 0; y < gridSize; y++ {
		for x := 0; x < gridSize; x++ {
			data[y*gridSize+x] = float32(small.Pix[y*small.Stride+x])
		}
	}
	coef := engine.DCT(data, gridSize, gridSize)

	block := make([]float64, 0, blockSize*blockSize)
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			block = append(block, coef[y*gridSize+x])
		}
	}

	// median over the block excluding the DC term
	sorted := append([]float64(nil), block[1:]...)
	sort.Float64s(sorted)
	median := sorted[len(sorted)/2]

	var fp Fingerprint
	for _, v := range block {
		fp <<= 1
		if v > median {
			fp |= 1
		}
	}
	return fp
}

// Distance is the Hamming distance between two fingerprints, in [0, 64].
// It is symmetric and zero exactly when the fingerprints are bit-identical.
func Distance(a, b Fingerprint) int {
	return bits.OnesCount64(uint64(a) ^ uint64(b))
}
