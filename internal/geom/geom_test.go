package geom

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// texturedImage builds a gradient with seeded noise so that correlation
// peaks are unambiguous.
func texturedImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rd := rand.New(rand.NewSource(99))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8(x*255/w) + uint8(rd.Intn(64))
			g := uint8(y*255/h) + uint8(rd.Intn(64))
			b := uint8(rd.Intn(256))
			img.Set(x, y, color.RGBA{r, g, b, 255})
		}
	}
	return img
}

func crop(src image.Image, r image.Rectangle) image.Image {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		for x := 0; x < r.Dx(); x++ {
			out.Set(x, y, src.At(r.Min.X+x, r.Min.Y+y))
		}
	}
	return out
}

func TestEstimateCropExactForPureCrop(t *testing.T) {
	ref := texturedImage(256, 256)
	region := image.Rect(32, 48, 224, 240)
	cand := crop(ref, region)

	est, err := EstimateCrop(ref, cand, Options{})
	require.NoError(t, err)
	assert.Equal(t, region.Min.X, est.X1)
	assert.Equal(t, region.Min.Y, est.Y1)
	assert.Equal(t, region.Max.X, est.X2)
	assert.Equal(t, region.Max.Y, est.Y2)
	assert.InDelta(t, 1.0, est.Scale, 1e-9)
	assert.Greater(t, est.Score, 0.99)
}

func TestEstimateCropUnrelatedScoresLow(t *testing.T) {
	ref := texturedImage(256, 256)
	// pure noise, no shared structure
	other := image.NewRGBA(image.Rect(0, 0, 192, 192))
	rd := rand.New(rand.NewSource(12345))
	for y := 0; y < 192; y++ {
		for x := 0; x < 192; x++ {
			other.Set(x, y, color.RGBA{uint8(rd.Intn(256)), uint8(rd.Intn(256)), uint8(rd.Intn(256)), 255})
		}
	}
	est, err := EstimateCrop(ref, other, Options{})
	require.NoError(t, err)
	assert.Less(t, est.Score, 0.5)
}

func TestEstimateCropNoFit(t *testing.T) {
	ref := texturedImage(64, 64)
	cand := texturedImage(512, 512)
	_, err := EstimateCrop(ref, cand, Options{ScaleMin: 1, ScaleMax: 2, SearchNum: 4})
	assert.ErrorIs(t, err, ErrNoFit)
}

func TestRestorePastesCandidateOverReference(t *testing.T) {
	ref := texturedImage(128, 128)
	region := image.Rect(16, 16, 112, 112)
	cand := crop(ref, region)

	restored := Restore(ref, cand, Estimate{
		X1: region.Min.X, Y1: region.Min.Y,
		X2: region.Max.X, Y2: region.Max.Y,
		Scale: 1.0, Score: 1.0,
	})
	require.Equal(t, ref.Bounds().Dx(), restored.Bounds().Dx())
	require.Equal(t, ref.Bounds().Dy(), restored.Bounds().Dy())

	// the restored canvas must match the reference pixel-for-pixel,
	// both inside the pasted region and in the backfilled borders
	for _, p := range []image.Point{{0, 0}, {8, 100}, {20, 20}, {64, 64}, {111, 111}, {127, 127}} {
		wr, wg, wb, _ := ref.At(p.X, p.Y).RGBA()
		gr, gg, gb, _ := restored.At(p.X, p.Y).RGBA()
		assert.Equal(t, wr>>8, gr>>8, "R at %v", p)
		assert.Equal(t, wg>>8, gg>>8, "G at %v", p)
		assert.Equal(t, wb>>8, gb>>8, "B at %v", p)
	}
}
