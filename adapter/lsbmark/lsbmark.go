// Package lsbmark is a spatial-domain backend: payload bits are written to
// the blue-channel least-significant bit at seeded pseudo-random pixel
// positions. It survives lossless round-trips only and offers no geometric
// recovery, which makes it the reference implementation of a
// SupportsRecovery()==false backend.
package lsbmark

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math/rand"

	"github.com/fxamacker/cbor/v2"

	"github.com/yyyoichi/watermark_verify/adapter"
	"github.com/yyyoichi/watermark_verify/internal/bitconv"
)

// Name is the backend identifier recorded with every embed.
const Name = "lsbmark"

// DefaultSeed selects the pixel positions when no seed is configured.
const DefaultSeed int64 = 424242

type metadata struct {
	Kind    string `cbor:"kind"`
	Payload string `cbor:"payload"`
	Seed    int64  `cbor:"seed"`
	Bits    int    `cbor:"bits"`
	Width   int    `cbor:"width"`
	Height  int    `cbor:"height"`
}

type Option func(*Adapter)

// WithSeed sets the position-selection seed.
func WithSeed(seed int64) Option {
	return func(a *Adapter) { a.seed = seed }
}

type Adapter struct {
	seed int64
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(opts ...Option) *Adapter {
	a := &Adapter{seed: DefaultSeed}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Embed(ctx context.Context, src image.Image, payload string) (adapter.EmbedOutput, error) {
	if err := ctx.Err(); err != nil {
		return adapter.EmbedOutput{}, err
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	bits := bitconv.BytesToBools([]byte(payload))
	if len(bits) > w*h {
		return adapter.EmbedOutput{}, fmt.Errorf("lsbmark: image too small: %d pixels for %d bits", w*h, len(bits))
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)

	for i, pos := range positions(w*h, len(bits), a.seed) {
		off := pos*4 + 2 // blue channel
		dst.Pix[off] &^= 1
		if bits[i] {
			dst.Pix[off] |= 1
		}
	}

	meta, err := cbor.Marshal(metadata{
		Kind:    Name,
		Payload: payload,
		Seed:    a.seed,
		Bits:    len(bits),
		Width:   w,
		Height:  h,
	})
	if err != nil {
		return adapter.EmbedOutput{}, fmt.Errorf("lsbmark: encode metadata: %w", err)
	}
	return adapter.EmbedOutput{Image: dst, Meta: meta, MarkBits: len(bits)}, nil
}

func (a *Adapter) Extract(ctx context.Context, candidate image.Image, meta adapter.Metadata) (adapter.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return adapter.Extraction{}, err
	}
	m, ok := a.decodeMeta(meta)
	if !ok {
		return adapter.Extraction{}, nil
	}

	bounds := candidate.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	// positions are only meaningful in the embed geometry
	if w != m.Width || h != m.Height {
		return adapter.Extraction{}, nil
	}

	bits := make([]bool, m.Bits)
	for i, pos := range positions(w*h, m.Bits, m.Seed) {
		x, y := pos%w, pos/w
		_, _, b32, _ := candidate.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
		bits[i] = (b32>>8)&1 == 1
	}

	if string(bitconv.BoolsToBytes(bits)) != m.Payload {
		return adapter.Extraction{}, nil
	}
	return adapter.Extraction{Payload: m.Payload, Found: true}, nil
}

func (a *Adapter) SupportsRecovery() bool { return false }

func (a *Adapter) RecoverAndExtract(ctx context.Context, candidate, reference image.Image, meta adapter.Metadata) (adapter.Extraction, adapter.RecoveryDetails) {
	return adapter.Extraction{}, adapter.RecoveryDetails{Err: "lsbmark: geometric recovery not supported"}
}

func (a *Adapter) decodeMeta(meta adapter.Metadata) (metadata, bool) {
	var m metadata
	if err := cbor.Unmarshal(meta, &m); err != nil {
		return metadata{}, false
	}
	if m.Kind != Name || m.Payload == "" || m.Bits != len([]byte(m.Payload))*8 {
		return metadata{}, false
	}
	return m, true
}

// positions yields the first n pixel indices of the seed-determined
// permutation of [0, total).
func positions(total, n int, seed int64) []int {
	return rand.New(rand.NewSource(seed)).Perm(total)[:n]
}
