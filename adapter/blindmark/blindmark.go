// Package blindmark adapts the transform-domain watermarking engine (Haar
// wavelet + block DCT/SVD quantization) to the backend contract. It is the
// only bundled backend with geometric recovery: a cropped or rescaled copy is
// matched against the persisted reference, restored into the original
// geometry, and re-extracted.
package blindmark

import (
	"context"
	"fmt"
	"image"

	"github.com/fxamacker/cbor/v2"

	"github.com/yyyoichi/watermark_verify/adapter"
	"github.com/yyyoichi/watermark_verify/internal/engine"
	"github.com/yyyoichi/watermark_verify/internal/geom"
	"github.com/yyyoichi/watermark_verify/internal/markcodec"
)

// Name is the backend identifier recorded with every embed.
const Name = "blindmark"

// minScore rejects recovery matches whose correlation is too weak to trust.
// Without this gate an unrelated candidate would be "restored" into a mostly
// reference-backed canvas and extraction would trivially succeed.
const minScore = 0.5

// metadata is the adapter-private embed record. The kind discriminator lets
// the adapter refuse blobs produced by other backends.
type metadata struct {
	Kind     string `cbor:"kind"`
	Payload  string `cbor:"payload"`
	MarkBits int    `cbor:"mark_bits"`
	Seed     int64  `cbor:"seed"`
	D1       int    `cbor:"d1"`
	D2       int    `cbor:"d2"`
	BlockW   int    `cbor:"block_w"`
	BlockH   int    `cbor:"block_h"`
}

type Option func(*Adapter)

// WithSeed sets the shuffle seed, the blindmark analog of a password.
// Extraction requires the seed the mark was embedded with.
func WithSeed(seed int64) Option {
	return func(a *Adapter) { a.seed = seed }
}

// WithParams overrides the engine quantization parameters for new embeds.
func WithParams(p engine.Params) Option {
	return func(a *Adapter) { a.params = p }
}

// WithSearch overrides the recovery scale-sweep bounds.
func WithSearch(o geom.Options) Option {
	return func(a *Adapter) { a.search = o }
}

type Adapter struct {
	seed   int64
	params engine.Params
	search geom.Options
}

var _ adapter.Adapter = (*Adapter)(nil)

func New(opts ...Option) *Adapter {
	a := &Adapter{seed: markcodec.DefaultSeed}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) Embed(ctx context.Context, src image.Image, payload string) (adapter.EmbedOutput, error) {
	bits := markcodec.Encode([]byte(payload), a.seed)
	marked, err := engine.Embed(ctx, src, bits, a.params)
	if err != nil {
		return adapter.EmbedOutput{}, fmt.Errorf("blindmark: %w", err)
	}

	p := a.params
	meta, err := cbor.Marshal(metadata{
		Kind:     Name,
		Payload:  payload,
		MarkBits: len(bits),
		Seed:     a.seed,
		D1:       p.D1,
		D2:       p.D2,
		BlockW:   p.BlockW,
		BlockH:   p.BlockH,
	})
	if err != nil {
		return adapter.EmbedOutput{}, fmt.Errorf("blindmark: encode metadata: %w", err)
	}
	return adapter.EmbedOutput{Image: marked, Meta: meta, MarkBits: len(bits)}, nil
}

func (a *Adapter) Extract(ctx context.Context, candidate image.Image, meta adapter.Metadata) (adapter.Extraction, error) {
	m, ok := a.decodeMeta(meta)
	if !ok {
		return adapter.Extraction{}, nil
	}

	// extraction parameters come from the metadata, not the adapter's
	// current configuration: they must match the embed exactly even if
	// the configured defaults changed since
	params := engine.Params{D1: m.D1, D2: m.D2, BlockW: m.BlockW, BlockH: m.BlockH}
	bits, err := engine.Extract(ctx, candidate, m.MarkBits, params)
	if err != nil {
		return adapter.Extraction{}, fmt.Errorf("blindmark: %w", err)
	}

	decoded, err := markcodec.Decode(bits, len([]byte(m.Payload)), m.Seed)
	if err != nil {
		return adapter.Extraction{}, nil
	}
	if string(decoded) != m.Payload {
		return adapter.Extraction{}, nil
	}
	return adapter.Extraction{Payload: m.Payload, Found: true}, nil
}

func (a *Adapter) SupportsRecovery() bool { return true }

func (a *Adapter) RecoverAndExtract(ctx context.Context, candidate, reference image.Image, meta adapter.Metadata) (adapter.Extraction, adapter.RecoveryDetails) {
	var details adapter.RecoveryDetails

	est, err := geom.EstimateCrop(reference, candidate, a.search)
	if err != nil {
		details.Err = err.Error()
		return adapter.Extraction{}, details
	}
	details.Estimated = &adapter.EstimatedRegion{
		X1: est.X1, Y1: est.Y1, X2: est.X2, Y2: est.Y2,
		Score: est.Score, Scale: est.Scale,
	}
	if est.Score < minScore {
		details.Err = fmt.Sprintf("blindmark: match confidence %.3f below threshold", est.Score)
		return adapter.Extraction{}, details
	}

	restored := geom.Restore(reference, candidate, est)
	ext, err := a.Extract(ctx, restored, meta)
	if err != nil {
		details.Err = err.Error()
		return adapter.Extraction{}, details
	}
	if ext.Found {
		details.Recovered = true
	}
	return ext, details
}

// decodeMeta unmarshals and validates the metadata blob; any blob that was
// not produced by this adapter reads as "no watermark".
func (a *Adapter) decodeMeta(meta adapter.Metadata) (metadata, bool) {
	var m metadata
	if err := cbor.Unmarshal(meta, &m); err != nil {
		return metadata{}, false
	}
	if m.Kind != Name || m.Payload == "" || m.MarkBits <= 0 {
		return metadata{}, false
	}
	if m.MarkBits != markcodec.EncodedBits(len([]byte(m.Payload))) {
		return metadata{}, false
	}
	return m, true
}
