package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yyyoichi/watermark_verify/phash"
	"github.com/yyyoichi/watermark_verify/store"
)

// EmbedResult is the outcome of a successful embed: the minted identity, the
// embedded mark length in bits, the watermarked PNG bytes, and the
// vault-relative location of the persisted reference copy.
type EmbedResult struct {
	ID       string
	MarkBits int
	PNG      []byte
	RefPath  string
}

// Embed watermarks src with payload and persists the result. An empty
// payload synthesizes a fresh "WM-<uuid>" token, so every embed carries a
// non-empty, collision-free payload. Embed is single-shot: backends are
// assumed deterministic, so failures surface to the caller instead of being
// retried, and no record is created on any failure path.
func (s *Service) Embed(ctx context.Context, src []byte, payload string) (EmbedResult, error) {
	img, err := decodeImage(src)
	if err != nil {
		return EmbedResult{}, err
	}
	if payload == "" {
		payload = "WM-" + uuid.NewString()
	}

	ad := s.adapters[s.defName]
	out, err := ad.Embed(ctx, img, payload)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("%w: %w", ErrEmbedFailed, err)
	}

	data, err := encodePNG(out.Image)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("%w: %w", ErrUnreadableOutput, err)
	}
	// the backend claimed success; make sure its output actually reads
	// back before anything is persisted
	marked, err := decodeImage(data)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("%w: %w", ErrUnreadableOutput, err)
	}

	id := uuid.NewString()
	refPath, checksum, err := s.vault.Save(id, data)
	if err != nil {
		return EmbedResult{}, err
	}

	bounds := marked.Bounds()
	rec := store.Record{
		ID:          id,
		Adapter:     ad.Name(),
		Meta:        out.Meta,
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		RefPath:     refPath,
		RefChecksum: checksum,
		Fingerprint: phash.Hash(marked),
		CreatedAt:   time.Now(),
	}
	if err := s.records.Put(rec); err != nil {
		return EmbedResult{}, err
	}

	s.log.Info().
		Str("id", id).
		Str("adapter", ad.Name()).
		Int("mark_bits", out.MarkBits).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Msg("watermark embedded")

	return EmbedResult{ID: id, MarkBits: out.MarkBits, PNG: data, RefPath: refPath}, nil
}
