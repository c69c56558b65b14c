// Package engine implements the transform-domain watermarking core: YUV
// decomposition, one-level Haar wavelet transform, and per-block DCT/SVD
// singular-value quantization. One mark bit is written per block; marks
// shorter than the block count repeat cyclically, which is what gives the
// extraction its robustness under local damage.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

var ErrTooSmallImage = errors.New("engine: image too small for mark length")

// Params selects the embedding strength and block geometry. The zero value
// is usable; Embed and Extract must be called with identical Params for the
// same image.
type Params struct {
	// D1 and D2 quantize the first and second singular values. Larger
	// values add more noise but survive heavier edits. D2 <= 0 disables
	// the second-value quantization.
	D1, D2 int
	// BlockW and BlockH are the block dimensions inside the low-frequency
	// wavelet subband. Zero selects 4x4.
	BlockW, BlockH int
}

func (p Params) withDefaults() Params {
	if p.D1 == 0 {
		p.D1 = 36
		p.D2 = 20
	}
	if p.BlockW < 2 {
		p.BlockW = 4
	}
	if p.BlockH < 2 {
		p.BlockH = 4
	}
	return p
}

// Capacity returns how many mark bits fit into a width x height image.
func Capacity(width, height int, p Params) int {
	p = p.withDefaults()
	hw, hh := (width+1)/2, (height+1)/2
	return (hw / p.BlockW) * (hh / p.BlockH)
}

// Embed writes the bit sequence into src and returns the marked image.
// The same sequence goes into all three YUV channels.
func Embed(ctx context.Context, src image.Image, bits []bool, p Params) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	pl := newPlanes(src)
	total := (pl.halfW / p.BlockW) * (pl.halfH / p.BlockH)
	if total < len(bits) {
		return nil, fmt.Errorf("%w: capacity %d bits, mark %d bits", ErrTooSmallImage, total, len(bits))
	}

	d1, d2 := p.D1, p.D2
	fd1, fd2 := float64(d1), float64(d2)
	quantize := func(s0, s1, bit float64) (float64, float64) {
		s0 = (float64(int(s0)/d1) + 1.0/4.0 + 1.0/2.0*0.5*bit) * fd1
		if d2 > 0 {
			s1 = (float64(int(s1)/d2) + 1.0/4.0 + 1.0/2.0*0.5*bit) * fd2
		}
		return s0, s1
	}

	var (
		idxMap    = blockIndexMap(pl.halfW, pl.halfH, p.BlockW, p.BlockH)
		cos       = newCosine(p.BlockW, p.BlockH)
		blockArea = p.BlockW * p.BlockH
	)

	var wg sync.WaitGroup
	wg.Add(3)
	for ch := 0; ch < 3; ch++ {
		go func(ch int) {
			defer wg.Done()
			fac := newFactorizer(p.BlockW, p.BlockH)
			sub := haarForward(pl.yuv[ch], pl.width, idxMap)
			cA := sub[0]
			for at := 0; at < total; at++ {
				block := cA[at*blockArea : (at+1)*blockArea : (at+1)*blockArea]
				bit := 0.0
				if bits[at%len(bits)] {
					bit = 1.0
				}
				coef, inverse := cos.forward(block)
				s, rebuild, err := fac.Exec(coef)
				if err != nil {
					return
				}
				s[0], s[1] = quantize(s[0], s[1], bit)
				rebuild()
				inverse()
			}
			pl.yuv[ch] = haarInverse(sub, pl.width, pl.height, idxMap)
		}(ch)
	}
	wg.Wait()
	return pl.compose(), nil
}

// Extract recovers a markLen bit sequence from src. Each bit is decided by
// k-means clustering over the quantization residuals of every block (and
// channel) that carried it.
func Extract(ctx context.Context, src image.Image, markLen int, p Params) ([]bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p = p.withDefaults()
	pl := newPlanes(src)
	total := (pl.halfW / p.BlockW) * (pl.halfH / p.BlockH)
	if total < markLen {
		return nil, fmt.Errorf("%w: capacity %d bits, mark %d bits", ErrTooSmallImage, total, markLen)
	}

	d1, d2 := p.D1, p.D2
	residual := func(s0, s1 float64) float64 {
		var v float64
		if int(s0)%d1 > d1/2 {
			v = 1
		}
		if d2 <= 0 {
			return v
		}
		if int(s1)%d2 > d2/2 {
			return (v*3 + 1) / 4.
		}
		return (v * 3) / 4.
	}

	var (
		idxMap    = blockIndexMap(pl.halfW, pl.halfH, p.BlockW, p.BlockH)
		cos       = newCosine(p.BlockW, p.BlockH)
		blockArea = p.BlockW * p.BlockH
		acc       = make([]meanAcc, markLen)
	)

	var wg sync.WaitGroup
	wg.Add(3)
	for ch := 0; ch < 3; ch++ {
		go func(ch int) {
			defer wg.Done()
			fac := newFactorizer(p.BlockW, p.BlockH)
			sub := haarForward(pl.yuv[ch], pl.width, idxMap)
			cA := sub[0]
			for at := 0; at < total; at++ {
				block := cA[at*blockArea : (at+1)*blockArea : (at+1)*blockArea]
				coef, _ := cos.forward(block)
				s, _, err := fac.Exec(coef)
				if err != nil {
					return
				}
				acc[at%markLen].Add(residual(s[0], s[1]))
			}
		}(ch)
	}
	wg.Wait()

	means := make([]float64, markLen)
	for i := range acc {
		means[i] = acc[i].Mean()
	}
	return cluster1D(means), nil
}
