package engine

import (
	"math"
	"sync"
)

// cosine holds the precomputed 2D DCT-II basis for a fixed w x h block.
// Building the basis is O((w*h)^2) so instances are cached per shape.
type cosine struct {
	w, h  int
	basis []float64
}

var (
	cosineMu    sync.Mutex
	cosineCache = map[[2]int]*cosine{}
)

// newCosine returns the (cached) DCT basis for the given block shape.
func newCosine(w, h int) *cosine {
	cosineMu.Lock()
	defer cosineMu.Unlock()
	if c, ok := cosineCache[[2]int{w, h}]; ok {
		return c
	}
	c := buildCosine(w, h)
	cosineCache[[2]int{w, h}] = c
	return c
}

func buildCosine(w, h int) *cosine {
	c := &cosine{w: w, h: h}
	wf, hf := float64(w), float64(h)

	phiW := make([]float64, w*w)
	for j := 0; j < w; j++ {
		phiW[j] = 1.0 / math.Sqrt(wf)
	}
	for i := 1; i < w; i++ {
		for j := 0; j < w; j++ {
			phiW[i*w+j] = math.Sqrt(2.0/wf) *
				math.Cos((float64(i)*math.Pi*(float64(j)*2+1))/(2.0*wf))
		}
	}

	phiH := make([]float64, h*h)
	for j := 0; j < h; j++ {
		phiH[j] = 1.0 / math.Sqrt(hf)
	}
	for i := 1; i < h; i++ {
		for j := 0; j < h; j++ {
			phiH[i*h+j] = math.Sqrt(2.0/hf) *
				math.Cos((float64(i)*math.Pi*(float64(j)*2+1))/(2.0*hf))
		}
	}

	c.basis = make([]float64, w*h*w*h)
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			for x := 0; x < h; x++ {
				for y := 0; y < w; y++ {
					idx := i*w*w*h + j*w*h + x*w + y
					c.basis[idx] = phiH[i*h+x] * phiW[j*w+y]
				}
			}
		}
	}
	return c
}

// forward computes the DCT of data in place-independent form and returns the
// coefficients plus a closure that writes the inverse transform of the
// (possibly modified) coefficients back into data.
func (c *cosine) forward(data []float32) ([]float64, func()) {
	w, h := c.w, c.h
	phi := c.basis
	coef := make([]float64, w*h)

	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			sum := 0.0
			for x := 0; x < h; x++ {
				for y := 0; y < w; y++ {
					sum += phi[i*w*w*h+j*w*h+x*w+y] * float64(data[x*w+y])
				}
			}
			coef[i*w+j] = sum
		}
	}

	inverse := func() {
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				sum := 0.0
				for x := 0; x < h; x++ {
					for y := 0; y < w; y++ {
						sum += phi[x*w*w*h+y*w*h+i*w+j] * coef[x*w+y]
					}
				}
				data[i*w+j] = float32(sum)
			}
		}
	}
	return coef, inverse
}

// DCT computes the 2D DCT-II coefficients of a w x h row-major block.
// Exposed for the perceptual hash, which reuses the cached basis.
func DCT(data []float32, w, h int) []float64 {
	coef, _ := newCosine(w, h).forward(data)
	return coef
}
