package engine

import (
	"image"
	"image/color"
)

// BT.601 coefficients, matching the OpenCV YUV conversion.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114

	chromaU = 0.492
	chromaV = 0.877
	delta   = .5

	invVR = 1.140
	invUG = -0.395
	invVG = -0.581
	invUB = 2.032
)

// planes holds an image decomposed into Y, U, V float32 channels plus the
// untouched alpha channel. The half dimensions are the sizes of the
// low-frequency subband after one Haar wavelet pass.
type planes struct {
	bounds        image.Rectangle
	width, height int
	halfW, halfH  int

	alpha []uint16
	yuv   [3][]float32
}

func newPlanes(src image.Image) *planes {
	var p planes
	p.bounds = src.Bounds()
	p.width, p.height = p.bounds.Dx(), p.bounds.Dy()
	p.halfW, p.halfH = (p.width+1)/2, (p.height+1)/2
	area := p.width * p.height
	for i := range p.yuv {
		p.yuv[i] = make([]float32, area)
	}
	p.alpha = make([]uint16, area)

	min := p.bounds.Min
	idx := 0
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			r32, g32, b32, a32 := src.At(min.X+x, min.Y+y).RGBA()
			r := float32(r32 >> 8)
			g := float32(g32 >> 8)
			b := float32(b32 >> 8)

			luma := lumaR*r + lumaG*g + lumaB*b
			p.yuv[0][idx] = luma
			p.yuv[1][idx] = chromaU*(b-luma) + delta
			p.yuv[2][idx] = chromaV*(r-luma) + delta
			p.alpha[idx] = uint16(a32)
			idx++
		}
	}
	return &p
}

// compose rebuilds an RGBA64 image from the (possibly modified) channels.
func (p *planes) compose() image.Image {
	dst := image.NewRGBA64(p.bounds)
	min := p.bounds.Min
	idx := 0
	for y := 0; y < p.height; y++ {
		for x := 0; x < p.width; x++ {
			luma := p.yuv[0][idx]
			u := p.yuv[1][idx] - delta
			v := p.yuv[2][idx] - delta

			r := luma + invVR*v
			g := luma + invUG*u + invVG*v
			b := luma + invUB*u

			dst.SetRGBA64(min.X+x, min.Y+y, color.RGBA64{
				R: clip16(r),
				G: clip16(g),
				B: clip16(b),
				A: p.alpha[idx],
			})
			idx++
		}
	}
	return dst
}

func clip16(v float32) uint16 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 65535
	}
	return uint16(v * 257.0)
}

// Luma returns the BT.601 luma plane of src as float32 values in [0, 255],
// row-major. Shared by the perceptual hash and the geometric recovery search.
func Luma(src image.Image) ([]float32, int, int) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	out := make([]float32, w*h)
	idx := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r32, g32, b32, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			out[idx] = lumaR*float32(r32>>8) + lumaG*float32(g32>>8) + lumaB*float32(b32>>8)
			idx++
		}
	}
	return out, w, h
}
