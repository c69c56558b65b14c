package engine

import "math"

// haarForward applies one level of the 2D Haar wavelet transform to a
// row-major plane of width w. The four subbands (cA, cH, cV, cD) are returned
// with their elements rearranged through idxMap so that each processing block
// occupies a contiguous run, removing the need for slice gymnastics in the
// per-block transform loop.
func haarForward(data []float32, w int, idxMap []int) [4][]float32 {
	h := len(data) / w
	hw, hh := (w+1)/2, (h+1)/2
	n := hw * hh

	var sub [4][]float32
	for i := range sub {
		sub[i] = make([]float32, n)
	}

	for y0 := 0; y0 < h; y0 += 2 {
		y1 := y0
		if y0+1 < h {
			y1 = y0 + 1
		}
		for x0 := 0; x0 < w; x0 += 2 {
			x1 := x0
			if x0+1 < w {
				x1 = x0 + 1
			}
			a1, d1 := avgDiff(data[y0*w+x0], data[y1*w+x0])
			a2, d2 := avgDiff(data[y0*w+x1], data[y1*w+x1])

			idx := idxMap[(y0/2)*hw+(x0/2)]
			sub[0][idx], sub[2][idx] = avgDiff(a1, a2)
			sub[1][idx], sub[3][idx] = avgDiff(d1, d2)
		}
	}
	return sub
}

// haarInverse reverses haarForward, reading the subbands back through the
// same index map.
func haarInverse(sub [4][]float32, w, h int, idxMap []int) []float32 {
	data := make([]float32, w*h)
	hw := (w + 1) / 2
	for y0 := 0; y0 < h; y0 += 2 {
		for x0 := 0; x0 < w; x0 += 2 {
			idx := idxMap[(y0/2)*hw+(x0/2)]

			a1, a2 := invAvgDiff(sub[0][idx], sub[2][idx])
			d1, d2 := invAvgDiff(sub[1][idx], sub[3][idx])

			v1, v2 := invAvgDiff(a1, d1)
			v3, v4 := invAvgDiff(a2, d2)

			data[y0*w+x0] = v1
			if y0+1 < h {
				data[(y0+1)*w+x0] = v2
			}
			if x0+1 < w {
				data[y0*w+(x0+1)] = v3
			}
			if y0+1 < h && x0+1 < w {
				data[(y0+1)*w+(x0+1)] = v4
			}
		}
	}
	return data
}

func avgDiff(v1, v2 float32) (float32, float32) {
	avg := (v1 + v2) / 2.0
	return avg * math.Sqrt2, (v1 - avg) * math.Sqrt2
}

func invAvgDiff(a, d float32) (float32, float32) {
	avg := a / math.Sqrt2
	return avg + d/math.Sqrt2, avg - d/math.Sqrt2
}

// blockIndexMap maps row-major subband positions of a w x h subband onto a
// layout where every bw x bh block is contiguous. Positions outside the block
// grid (right and bottom margins) are appended after the block area, so the
// map is a permutation of [0, w*h).
func blockIndexMap(w, h, bw, bh int) []int {
	nx, ny := w/bw, h/bh
	allocW, allocH := nx*bw, ny*bh
	marginW := w - allocW
	blockArea := bw * bh
	rowArea := allocW * bh
	totalAlloc := allocW * allocH

	out := make([]int, w*h)
	for i := range out {
		x, y := i%w, i/w
		switch {
		case y >= allocH:
			// bottom margin keeps its row-major position
			out[i] = i
		case x >= allocW:
			// right margin packs after the block area
			out[i] = totalAlloc + y*marginW + (x - allocW)
		default:
			brow, bcol := y/bh, x/bw
			start := brow*rowArea + bcol*blockArea
			out[i] = start + (y%bh)*bw + (x % bw)
		}
	}
	return out
}
