package verify

import "errors"

var (
	// ErrInvalidImage reports input bytes no registered codec can decode.
	ErrInvalidImage = errors.New("verify: invalid image")

	// ErrUnknownIdentity reports a verify call against an identity that
	// was never issued.
	ErrUnknownIdentity = errors.New("verify: unknown watermark id")

	// ErrEmbedFailed reports that the backend could not embed into the
	// given source image.
	ErrEmbedFailed = errors.New("verify: embed failed")

	// ErrUnreadableOutput reports that the backend claimed success but
	// produced bytes that do not decode. This is a server fault, not a
	// caller fault.
	ErrUnreadableOutput = errors.New("verify: embedded image not readable")

	// ErrUnknownAdapter reports a record whose backend is not registered
	// with this service instance.
	ErrUnknownAdapter = errors.New("verify: unknown adapter")
)
