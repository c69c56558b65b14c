package engine

import (
	"math"
	"sync"
)

// meanAcc accumulates observations of a single mark bit across blocks and
// channels. Add is safe for concurrent use by the per-channel goroutines.
type meanAcc struct {
	sum   float64
	count int
	mu    sync.Mutex
}

func (a *meanAcc) Add(v float64) {
	a.mu.Lock()
	a.sum += v
	a.count++
	a.mu.Unlock()
}

func (a *meanAcc) Mean() float64 { return a.sum / float64(a.count) }

// cluster1D splits one-dimensional values into two clusters with k-means
// (k=2) and reports, per value, membership in the high cluster. Centers start
// at the min and max and iterate until the midpoint stabilizes.
func cluster1D(values []float64) []bool {
	lo, hi := values[0], values[0]
	for _, v := range values {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	center := [2]float64{lo, hi}

	var high []bool
	const tol = 1e-6
	for iter := 0; iter < 300; iter++ {
		high = make([]bool, len(values))
		threshold := (center[0] + center[1]) / 2.
		var highs, lows meanAcc
		for i, v := range values {
			if threshold <= v {
				high[i] = true
				highs.Add(v)
			} else {
				lows.Add(v)
			}
		}
		center = [2]float64{highs.Mean(), lows.Mean()}
		if math.Abs((center[0]+center[1])/2.-threshold) < tol {
			break
		}
	}
	return high
}
