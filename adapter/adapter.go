// Package adapter defines the contract every watermarking backend satisfies.
// The orchestrators never look inside a backend: embedding metadata is an
// opaque blob only the producing adapter can decode, and extraction outcomes
// are normalized to found/absent so the verification decision procedure stays
// backend-agnostic.
package adapter

import (
	"context"
	"image"
)

// Metadata is an adapter-private, serialized blob produced by Embed and
// required unmodified by the same adapter's Extract and RecoverAndExtract.
// Metadata produced by one adapter must never be handed to another; adapters
// detect foreign blobs and report Absent rather than guessing.
type Metadata []byte

// Extraction is the outcome of an extraction attempt. Found reports whether
// the payload implied by the metadata was recovered; a false Found with a nil
// error from Extract means "absent", which deliberately conflates "no
// watermark" with "wrong watermark".
type Extraction struct {
	Payload string
	Found   bool
}

// EmbedOutput carries the marked image, the opaque metadata needed to
// extract it later, and the embedded mark length in bits (the one
// non-opaque fact surfaced to callers).
type EmbedOutput struct {
	Image    image.Image
	Meta     Metadata
	MarkBits int
}

// EstimatedRegion describes where a recovery pass located the candidate
// inside the reference, in reference pixel coordinates.
type EstimatedRegion struct {
	X1    int     `json:"x1"`
	Y1    int     `json:"y1"`
	X2    int     `json:"x2"`
	Y2    int     `json:"y2"`
	Score float64 `json:"score"`
	Scale float64 `json:"scale"`
}

// RecoveryDetails is the diagnostic bag of a single recovery attempt. It is
// produced and consumed within one verify call and never persisted.
type RecoveryDetails struct {
	Estimated *EstimatedRegion `json:"estimated,omitempty"`
	Recovered bool             `json:"recovered,omitempty"`
	Err       string           `json:"recovery_error,omitempty"`
}

// Empty reports whether the bag carries nothing worth returning.
func (d RecoveryDetails) Empty() bool {
	return d.Estimated == nil && !d.Recovered && d.Err == ""
}

// Adapter normalizes a watermarking engine behind four operations.
type Adapter interface {
	// Name identifies the backend; it is recorded with every embed and
	// used to reconstruct the same backend at verify time.
	Name() string

	// Embed writes payload into src. It fails when the source cannot
	// carry the mark (too small, unprocessable); no partial output is
	// returned on error.
	Embed(ctx context.Context, src image.Image, payload string) (EmbedOutput, error)

	// Extract attempts to recover the payload implied by meta from the
	// candidate. A nil error with Found=false means absent; a non-nil
	// error means the attempt itself faulted. Callers are expected to
	// treat faults as absent for decision purposes.
	Extract(ctx context.Context, candidate image.Image, meta Metadata) (Extraction, error)

	// SupportsRecovery reports whether RecoverAndExtract is implemented.
	// Callers must gate on it; invoking recovery on an unsupporting
	// adapter is a contract violation.
	SupportsRecovery() bool

	// RecoverAndExtract estimates the geometric transform between the
	// candidate and the reference, undoes it, and re-attempts
	// extraction. It fails closed: internal errors surface as
	// diagnostics in RecoveryDetails, never as a fault.
	RecoverAndExtract(ctx context.Context, candidate, reference image.Image, meta Metadata) (Extraction, RecoveryDetails)
}
