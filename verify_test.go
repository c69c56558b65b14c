package verify_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	verify "github.com/yyyoichi/watermark_verify"
	"github.com/yyyoichi/watermark_verify/adapter"
)

func sourceImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rd := rand.New(rand.NewSource(42))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8((x*255/w + y*255/h) / 2)
			img.Set(x, y, color.RGBA{v + uint8(rd.Intn(32)), v, 255 - v, 255})
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodePNG(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func newService(t *testing.T, opts ...verify.Option) *verify.Service {
	t.Helper()
	opts = append([]verify.Option{verify.WithStorageDir(t.TempDir())}, opts...)
	svc, err := verify.New(opts...)
	require.NoError(t, err)
	return svc
}

func TestEmbed(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "WM-embed")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
	assert.Greater(t, res.MarkBits, 0)
	assert.NotEmpty(t, res.PNG)
	decodePNG(t, res.PNG)

	// the reference copy must be on disk where the static server finds it
	_, err = os.Stat(filepath.Join(svc.StorageDir(), res.RefPath))
	assert.NoError(t, err)
}

func TestEmbedMintsPayload(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "")
	require.NoError(t, err)

	got, err := svc.Verify(ctx, res.PNG, res.ID, false)
	require.NoError(t, err)
	require.True(t, got.Found)
	assert.True(t, strings.HasPrefix(got.Payload, "WM-"))
}

func TestEmbedInvalidImage(t *testing.T) {
	svc := newService(t)
	_, err := svc.Embed(context.Background(), []byte("not an image"), "x")
	assert.ErrorIs(t, err, verify.ErrInvalidImage)
}

func TestEmbedTooSmallImage(t *testing.T) {
	svc := newService(t)
	_, err := svc.Embed(context.Background(), pngBytes(t, sourceImage(8, 8)), "WM-too-long-for-8x8")
	assert.ErrorIs(t, err, verify.ErrEmbedFailed)
}

func TestVerifyUntouchedCopy(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "WM-same")
	require.NoError(t, err)

	got, err := svc.Verify(ctx, res.PNG, res.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.True(t, got.Matches)
	assert.Equal(t, verify.StatusSame, got.Status)
	assert.Equal(t, "WM-same", got.Payload)
	assert.Equal(t, 0, got.Distance)
	assert.Nil(t, got.Details, "no recovery ran, so no diagnostics")
}

func TestVerifyEditedCopy(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "WM-edited")
	require.NoError(t, err)

	// paint a solid block over one corner; the mark repeats across the
	// image and survives, but the content visibly changed
	marked := decodePNG(t, res.PNG)
	edited := image.NewRGBA64(marked.Bounds())
	for y := 0; y < 256; y++ {
		for x := 0; x < 256; x++ {
			edited.Set(x, y, marked.At(x, y))
		}
	}
	for y := 0; y < 80; y++ {
		for x := 0; x < 80; x++ {
			edited.Set(x, y, color.RGBA64{A: 0xffff})
		}
	}

	got, err := svc.Verify(ctx, pngBytes(t, edited), res.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.Equal(t, verify.StatusModified, got.Status)
	assert.Equal(t, "WM-edited", got.Payload)
	assert.Greater(t, got.Distance, 0)
}

func TestVerifyUnrelatedImage(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "WM-unrelated")
	require.NoError(t, err)

	noise := image.NewRGBA(image.Rect(0, 0, 192, 192))
	rd := rand.New(rand.NewSource(7))
	for y := 0; y < 192; y++ {
		for x := 0; x < 192; x++ {
			noise.Set(x, y, color.RGBA{uint8(rd.Intn(256)), uint8(rd.Intn(256)), uint8(rd.Intn(256)), 255})
		}
	}

	// without recovery: clean miss, no diagnostics
	got, err := svc.Verify(ctx, pngBytes(t, noise), res.ID, false)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.False(t, got.Matches)
	assert.Equal(t, verify.StatusTampered, got.Status)
	assert.Empty(t, got.Payload)
	assert.Nil(t, got.Details)

	// with recovery: the attempt runs and reports why it rejected
	got, err = svc.Verify(ctx, pngBytes(t, noise), res.ID, true)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.Equal(t, verify.StatusTampered, got.Status)
	require.NotNil(t, got.Details)
	assert.NotEmpty(t, got.Details.Err)
}

func TestVerifyCroppedCopyRecovers(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "WM-cropped")
	require.NoError(t, err)

	marked := decodePNG(t, res.PNG)
	region := image.Rect(32, 32, 224, 224)
	cropped := image.NewRGBA64(image.Rect(0, 0, region.Dx(), region.Dy()))
	for y := 0; y < region.Dy(); y++ {
		for x := 0; x < region.Dx(); x++ {
			cropped.Set(x, y, marked.At(region.Min.X+x, region.Min.Y+y))
		}
	}

	// the cropped geometry defeats direct extraction
	got, err := svc.Verify(ctx, pngBytes(t, cropped), res.ID, false)
	require.NoError(t, err)
	require.False(t, got.Found)

	// recovery locates the crop in the reference and re-extracts
	got, err = svc.Verify(ctx, pngBytes(t, cropped), res.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.True(t, got.Matches)
	assert.Equal(t, "WM-cropped", got.Payload)
	assert.NotEqual(t, verify.StatusTampered, got.Status)
	require.NotNil(t, got.Details)
	assert.True(t, got.Details.Recovered)
	require.NotNil(t, got.Details.Estimated)
	assert.Equal(t, region.Min.X, got.Details.Estimated.X1)
	assert.Equal(t, region.Min.Y, got.Details.Estimated.Y1)
}

func TestVerifyUnknownIdentity(t *testing.T) {
	svc := newService(t)
	_, err := svc.Verify(context.Background(), pngBytes(t, sourceImage(64, 64)), "no-such-id", true)
	assert.ErrorIs(t, err, verify.ErrUnknownIdentity)
}

func TestVerifyInvalidImage(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "WM-x")
	require.NoError(t, err)

	_, err = svc.Verify(ctx, []byte("junk"), res.ID, true)
	assert.ErrorIs(t, err, verify.ErrInvalidImage)
}

func TestVerifyIsRepeatable(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(256, 256)), "WM-repeat")
	require.NoError(t, err)

	first, err := svc.Verify(ctx, res.PNG, res.ID, true)
	require.NoError(t, err)
	second, err := svc.Verify(ctx, res.PNG, res.ID, true)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// stubAdapter lets the gating tests observe exactly which contract calls the
// orchestrator makes.
type stubAdapter struct {
	supports      bool
	extractFound  bool
	recoverCalled bool
}

func (s *stubAdapter) Name() string { return "stub" }

func (s *stubAdapter) Embed(ctx context.Context, src image.Image, payload string) (adapter.EmbedOutput, error) {
	return adapter.EmbedOutput{Image: src, Meta: adapter.Metadata(payload), MarkBits: len(payload) * 8}, nil
}

func (s *stubAdapter) Extract(ctx context.Context, candidate image.Image, meta adapter.Metadata) (adapter.Extraction, error) {
	if s.extractFound {
		return adapter.Extraction{Payload: string(meta), Found: true}, nil
	}
	return adapter.Extraction{}, nil
}

func (s *stubAdapter) SupportsRecovery() bool { return s.supports }

func (s *stubAdapter) RecoverAndExtract(ctx context.Context, candidate, reference image.Image, meta adapter.Metadata) (adapter.Extraction, adapter.RecoveryDetails) {
	s.recoverCalled = true
	return adapter.Extraction{}, adapter.RecoveryDetails{Err: "stub: nothing recovered"}
}

func TestVerifySkipsRecoveryWhenDisabled(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{supports: true}
	svc := newService(t, verify.WithAdapter(stub), verify.WithDefaultAdapter("stub"))

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(64, 64)), "WM-stub")
	require.NoError(t, err)

	got, err := svc.Verify(ctx, res.PNG, res.ID, false)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.False(t, stub.recoverCalled, "recovery must not run when the caller disabled it")
	assert.Nil(t, got.Details)
}

func TestVerifySkipsRecoveryWhenFoundDirectly(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{supports: true, extractFound: true}
	svc := newService(t, verify.WithAdapter(stub), verify.WithDefaultAdapter("stub"))

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(64, 64)), "WM-stub")
	require.NoError(t, err)

	got, err := svc.Verify(ctx, res.PNG, res.ID, true)
	require.NoError(t, err)
	assert.True(t, got.Found)
	assert.False(t, stub.recoverCalled, "a direct hit must not trigger recovery")
}

func TestVerifyUnsupportedRecovery(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{supports: false}
	svc := newService(t, verify.WithAdapter(stub), verify.WithDefaultAdapter("stub"))

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(64, 64)), "WM-stub")
	require.NoError(t, err)

	got, err := svc.Verify(ctx, res.PNG, res.ID, true)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.False(t, stub.recoverCalled)
	require.NotNil(t, got.Details)
	assert.Equal(t, "adapter does not support recovery", got.Details.Err)
}

func TestVerifyMissingReference(t *testing.T) {
	ctx := context.Background()
	stub := &stubAdapter{supports: true}
	svc := newService(t, verify.WithAdapter(stub), verify.WithDefaultAdapter("stub"))

	res, err := svc.Embed(ctx, pngBytes(t, sourceImage(64, 64)), "WM-stub")
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(svc.StorageDir(), res.RefPath)))

	got, err := svc.Verify(ctx, res.PNG, res.ID, true)
	require.NoError(t, err)
	assert.False(t, got.Found)
	assert.False(t, stub.recoverCalled, "recovery needs the reference; without it the attempt never starts")
	require.NotNil(t, got.Details)
	assert.Equal(t, "reference image not found on server", got.Details.Err)
}

func TestNewRejectsUnknownDefault(t *testing.T) {
	_, err := verify.New(verify.WithStorageDir(t.TempDir()), verify.WithDefaultAdapter("nope"))
	assert.ErrorIs(t, err, verify.ErrUnknownAdapter)
}
