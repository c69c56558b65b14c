package verify

import (
	"context"
	"fmt"
	"image"

	"github.com/yyyoichi/watermark_verify/adapter"
	"github.com/yyyoichi/watermark_verify/phash"
	"github.com/yyyoichi/watermark_verify/store"
)

// Status classifies how a verified copy relates to the embedded original.
type Status string

const (
	// StatusSame: watermark found and the perceptual fingerprint is
	// unchanged, i.e. visually equivalent content.
	StatusSame Status = "same"
	// StatusModified: watermark found but the fingerprint moved, i.e.
	// the image was visibly edited and the mark survived.
	StatusModified Status = "modified_but_watermark_intact"
	// StatusTampered: the expected watermark was not recovered, with or
	// without a recovery attempt.
	StatusTampered Status = "tampered_or_not_watermarked"
)

// VerifyResult is the outcome of one verification. Payload is populated only
// when Found; a recovered-but-mismatched payload is never leaked. Details is
// non-nil only when a recovery path was exercised.
type VerifyResult struct {
	Found    bool
	Matches  bool
	Status   Status
	Payload  string
	Distance int
	Details  *adapter.RecoveryDetails
}

// Verify decides whether the candidate image still carries the watermark
// issued under id. The decision runs direct extraction first; when that
// misses and tryRecover is set, a geometric recovery pass follows, provided
// the recorded backend supports it and the reference image is retrievable.
// Inability to recover is a legitimate "not found" outcome, never an error.
func (s *Service) Verify(ctx context.Context, candidate []byte, id string, tryRecover bool) (VerifyResult, error) {
	rec, ok := s.records.Get(id)
	if !ok {
		return VerifyResult{}, fmt.Errorf("%w: %s", ErrUnknownIdentity, id)
	}
	ad, ok := s.adapters[rec.Adapter]
	if !ok {
		return VerifyResult{}, fmt.Errorf("%w: %s", ErrUnknownAdapter, rec.Adapter)
	}

	img, err := decodeImage(candidate)
	if err != nil {
		return VerifyResult{}, err
	}

	ext, err := ad.Extract(ctx, img, rec.Meta)
	if err != nil {
		// a faulted extraction reads as absent for decision purposes
		s.log.Debug().Str("id", id).Err(err).Msg("direct extraction faulted")
		ext = adapter.Extraction{}
	}

	var details adapter.RecoveryDetails
	if !ext.Found && tryRecover {
		ext, details = s.recover(ctx, ad, img, rec)
	}

	dist := phash.Distance(rec.Fingerprint, phash.Hash(img))

	result := VerifyResult{
		Found:    ext.Found,
		Matches:  ext.Found,
		Status:   StatusTampered,
		Distance: dist,
	}
	if ext.Found {
		result.Payload = ext.Payload
		if dist == 0 {
			result.Status = StatusSame
		} else {
			result.Status = StatusModified
		}
	}
	if !details.Empty() {
		result.Details = &details
	}

	s.log.Info().
		Str("id", id).
		Str("adapter", rec.Adapter).
		Bool("found", result.Found).
		Str("status", string(result.Status)).
		Int("distance", dist).
		Msg("watermark verified")

	return result, nil
}

// recover runs the recovery gate and, when open, the recovery attempt.
// Every gate failure degrades to a diagnostic, not an error.
func (s *Service) recover(ctx context.Context, ad adapter.Adapter, candidate image.Image, rec store.Record) (adapter.Extraction, adapter.RecoveryDetails) {
	if !ad.SupportsRecovery() {
		return adapter.Extraction{}, adapter.RecoveryDetails{Err: "adapter does not support recovery"}
	}
	data, err := s.vault.Load(rec.RefPath, rec.RefChecksum)
	if err != nil {
		s.log.Warn().Str("id", rec.ID).Err(err).Msg("reference image unavailable")
		return adapter.Extraction{}, adapter.RecoveryDetails{Err: "reference image not found on server"}
	}
	ref, err := decodeImage(data)
	if err != nil {
		s.log.Warn().Str("id", rec.ID).Err(err).Msg("reference image unreadable")
		return adapter.Extraction{}, adapter.RecoveryDetails{Err: "reference image not readable"}
	}
	return ad.RecoverAndExtract(ctx, candidate, ref, rec.Meta)
}
