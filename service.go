// Package verify embeds invisible, recoverable identifiers into images and
// later decides whether a possibly edited copy still carries them. The
// embedding math lives behind the adapter contract; this package owns the
// embed/persist/verify orchestration and the record lifecycle.
package verify

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/rs/zerolog"

	"github.com/yyyoichi/watermark_verify/adapter"
	"github.com/yyyoichi/watermark_verify/adapter/blindmark"
	"github.com/yyyoichi/watermark_verify/adapter/lsbmark"
	"github.com/yyyoichi/watermark_verify/store"
)

// Service owns the record registry, the reference-image vault, and the set
// of registered backends. It is safe for concurrent use; each call is an
// independent unit of work.
type Service struct {
	adapters   map[string]adapter.Adapter
	defName    string
	records    *store.Store
	vault      *store.Vault
	storageDir string
	log        zerolog.Logger
}

type Option func(*Service) error

// WithAdapter registers a backend (replacing any previous registration under
// the same name).
func WithAdapter(a adapter.Adapter) Option {
	return func(s *Service) error {
		s.adapters[a.Name()] = a
		return nil
	}
}

// WithDefaultAdapter selects the backend for new embeds. Verification always
// uses the backend recorded at embed time, never this default.
func WithDefaultAdapter(name string) Option {
	return func(s *Service) error {
		s.defName = name
		return nil
	}
}

// WithStorageDir sets where reference images persist.
func WithStorageDir(dir string) Option {
	return func(s *Service) error {
		s.storageDir = dir
		return nil
	}
}

// WithLogger attaches a logger; the default discards everything.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) error {
		s.log = log
		return nil
	}
}

// New builds a service with the blindmark and lsbmark backends registered
// and blindmark as the default.
func New(opts ...Option) (*Service, error) {
	s := &Service{
		adapters:   map[string]adapter.Adapter{},
		defName:    blindmark.Name,
		records:    store.New(),
		storageDir: "storage",
		log:        zerolog.Nop(),
	}
	for _, a := range []adapter.Adapter{blindmark.New(), lsbmark.New()} {
		s.adapters[a.Name()] = a
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if _, ok := s.adapters[s.defName]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, s.defName)
	}
	vault, err := store.NewVault(s.storageDir)
	if err != nil {
		return nil, err
	}
	s.vault = vault
	return s, nil
}

// StorageDir returns the vault root for static serving.
func (s *Service) StorageDir() string { return s.vault.Dir() }

// DefaultAdapter returns the backend name used for new embeds.
func (s *Service) DefaultAdapter() string { return s.defName }

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("verify: png encode: %w", err)
	}
	return buf.Bytes(), nil
}
