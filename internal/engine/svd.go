package engine

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// factorizer wraps gonum's SVD for a fixed block shape. Exec returns the
// singular values and a closure that reconstructs the block from the
// (possibly modified) values.
type factorizer struct {
	w, h int
}

func newFactorizer(w, h int) *factorizer {
	return &factorizer{w: w, h: h}
}

func (f *factorizer) Exec(data []float64) (s []float64, rebuild func(), err error) {
	w, h := f.w, f.h

	a := mat.NewDense(h, w, data)
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDFull); !ok {
		return nil, nil, fmt.Errorf("svd factorization failed for %dx%d block", h, w)
	}

	s = svd.Values(nil)
	rebuild = func() {
		minDim := min(h, w)
		sigma := mat.NewDense(h, w, nil)
		for i := 0; i < minDim && i < len(s); i++ {
			sigma.Set(i, i, s[i])
		}

		var u, v mat.Dense
		svd.UTo(&u)
		svd.VTo(&v)

		var res mat.Dense
		res.Product(&u, sigma, v.T())

		resData := res.RawMatrix().Data
		copy(data, resData[:min(len(data), len(resData))])
	}
	return s, rebuild, nil
}
