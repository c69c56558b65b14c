// Package geom estimates the crop/scale transform between a reference image
// and an edited copy, and restores the copy into the reference geometry so
// that a transform-domain watermark becomes extractable again. The search is
// a normalized cross-correlation template match over a scale sweep, run
// coarse-to-fine: a downsampled pass locates the candidate region per scale,
// then a full-resolution pass around the winning position pins the offset
// down to the pixel.
package geom

import (
	"errors"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/yyyoichi/watermark_verify/internal/engine"
)

var (
	ErrNoFit = errors.New("geom: candidate does not fit inside reference at any searched scale")
)

// Options bounds the scale sweep. The zero value searches scales 0.5..2.0 at
// 16 steps, which includes the exact 1.0 needed for pure crops.
type Options struct {
	ScaleMin  float64
	ScaleMax  float64
	SearchNum int
}

func (o Options) withDefaults() Options {
	if o.ScaleMin == 0 && o.ScaleMax == 0 {
		o.ScaleMin, o.ScaleMax = 0.5, 2.0
	}
	if o.SearchNum <= 0 {
		o.SearchNum = 16
	}
	return o
}

// Estimate locates the candidate inside the reference: the bounding box is in
// reference coordinates, Scale is the factor the candidate was shrunk or
// grown by, and Score is the normalized correlation at the match (1.0 is a
// pixel-perfect fit).
type Estimate struct {
	X1, Y1, X2, Y2 int
	Score          float64
	Scale          float64
}

// EstimateCrop searches for the crop/scale parameters that map the candidate
// back into the reference.
func EstimateCrop(ref, cand image.Image, opt Options) (Estimate, error) {
	opt = opt.withDefaults()

	refGray := grayOf(ref)
	candGray := grayOf(cand)
	rw, rh := refGray.Rect.Dx(), refGray.Rect.Dy()
	cw, ch := candGray.Rect.Dx(), candGray.Rect.Dy()

	// coarse decimation factor: reference at most ~64px on its short side
	factor := 1
	for min(rw, rh)/(factor*2) >= 64 {
		factor *= 2
	}
	coarseRef := decimate(refGray, factor)

	best := Estimate{Score: math.Inf(-1)}
	for i := 0; i < opt.SearchNum; i++ {
		scale := opt.ScaleMin
		if opt.SearchNum > 1 {
			scale += (opt.ScaleMax - opt.ScaleMin) * float64(i) / float64(opt.SearchNum-1)
		}
		sw, sh := int(float64(cw)*scale), int(float64(ch)*scale)
		if sw < 2 || sh < 2 || sw > rw || sh > rh {
			continue
		}
		scaled := resizeGray(candGray, sw, sh)
		coarseCand := decimate(scaled, factor)
		x, y, score := matchTemplate(coarseRef, coarseCand, 0, 0, coarseRef.Rect.Dx(), coarseRef.Rect.Dy())
		if score > best.Score {
			best = Estimate{X1: x * factor, Y1: y * factor, X2: x*factor + sw, Y2: y*factor + sh, Score: score, Scale: scale}
		}
	}
	if math.IsInf(best.Score, -1) {
		return Estimate{}, ErrNoFit
	}

	// full-resolution refinement around the coarse winner
	sw, sh := best.X2-best.X1, best.Y2-best.Y1
	scaled := resizeGray(candGray, sw, sh)
	x0 := max(0, best.X1-2*factor)
	y0 := max(0, best.Y1-2*factor)
	x1 := min(rw-sw, best.X1+2*factor)
	y1 := min(rh-sh, best.Y1+2*factor)
	x, y, score := matchTemplate(refGray, scaled, x0, y0, x1+1, y1+1)
	best.X1, best.Y1, best.X2, best.Y2 = x, y, x+sw, y+sh
	best.Score = score
	return best, nil
}

// Restore rebuilds an image with the reference geometry: the candidate is
// scaled back to the estimated region and pasted over a copy of the
// reference. Regions the crop removed therefore keep the reference pixels,
// which still carry the watermark; whether the pasted region agrees with them
// is what extraction then decides.
func Restore(ref, cand image.Image, est Estimate) image.Image {
	bounds := ref.Bounds()
	canvas := image.NewRGBA64(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Copy(canvas, image.Point{}, ref, bounds, draw.Src, nil)

	region := image.Rect(est.X1, est.Y1, est.X2, est.Y2)
	if cand.Bounds().Dx() == region.Dx() && cand.Bounds().Dy() == region.Dy() {
		draw.Copy(canvas, region.Min, cand, cand.Bounds(), draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(canvas, region, cand, cand.Bounds(), draw.Src, nil)
	}
	return canvas
}

// matchTemplate runs zero-mean NCC of tpl against img over offsets
// [x0,x1) x [y0,y1) (clamped to valid placements) and returns the best
// offset and its score.
func matchTemplate(img, tpl *image.Gray, x0, y0, x1, y1 int) (int, int, float64) {
	iw, ih := img.Rect.Dx(), img.Rect.Dy()
	tw, th := tpl.Rect.Dx(), tpl.Rect.Dy()

	x1 = min(x1, iw-tw+1)
	y1 = min(y1, ih-th+1)
	x0 = max(x0, 0)
	y0 = max(y0, 0)

	// template statistics
	n := float64(tw * th)
	var tSum float64
	for y := 0; y < th; y++ {
		row := tpl.Pix[y*tpl.Stride : y*tpl.Stride+tw]
		for _, v := range row {
			tSum += float64(v)
		}
	}
	tMean := tSum / n
	tZero := make([]float64, tw*th)
	var tNorm float64
	for y := 0; y < th; y++ {
		for x := 0; x < tw; x++ {
			v := float64(tpl.Pix[y*tpl.Stride+x]) - tMean
			tZero[y*tw+x] = v
			tNorm += v * v
		}
	}

	bestX, bestY, bestScore := x0, y0, math.Inf(-1)
	for oy := y0; oy < y1; oy++ {
		for ox := x0; ox < x1; ox++ {
			var iSum float64
			for y := 0; y < th; y++ {
				row := img.Pix[(oy+y)*img.Stride+ox : (oy+y)*img.Stride+ox+tw]
				for _, v := range row {
					iSum += float64(v)
				}
			}
			iMean := iSum / n
			var dot, iNorm float64
			for y := 0; y < th; y++ {
				row := img.Pix[(oy+y)*img.Stride+ox : (oy+y)*img.Stride+ox+tw]
				for x, v := range row {
					d := float64(v) - iMean
					dot += d * tZero[y*tw+x]
					iNorm += d * d
				}
			}
			denom := math.Sqrt(tNorm * iNorm)
			if denom == 0 {
				continue
			}
			if score := dot / denom; score > bestScore {
				bestX, bestY, bestScore = ox, oy, score
			}
		}
	}
	return bestX, bestY, bestScore
}

// grayOf reduces an image to its BT.601 luma as an 8-bit gray plane.
func grayOf(src image.Image) *image.Gray {
	luma, w, h := engine.Luma(src)
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i, v := range luma {
		g.Pix[(i/w)*g.Stride+i%w] = uint8(math.Min(255, math.Round(float64(v))))
	}
	return g
}

func resizeGray(src *image.Gray, w, h int) *image.Gray {
	if src.Rect.Dx() == w && src.Rect.Dy() == h {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst
}

// decimate box-averages src by an integer factor.
func decimate(src *image.Gray, factor int) *image.Gray {
	if factor <= 1 {
		return src
	}
	w, h := src.Rect.Dx()/factor, src.Rect.Dy()/factor
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum int
			for dy := 0; dy < factor; dy++ {
				for dx := 0; dx < factor; dx++ {
					sum += int(src.Pix[(y*factor+dy)*src.Stride+x*factor+dx])
				}
			}
			dst.Pix[y*dst.Stride+x] = uint8(sum / (factor * factor))
		}
	}
	return dst
}
