package store

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

var ErrChecksumMismatch = errors.New("store: reference image checksum mismatch")

// Vault persists reference images on the filesystem. Crop/scale recovery is
// only correct against the exact bytes returned at embed time, so every save
// records a BLAKE3 checksum and every load verifies it.
type Vault struct {
	dir string
}

const embedDir = "embeds"

// NewVault opens (creating if needed) a vault rooted at dir.
func NewVault(dir string) (*Vault, error) {
	if err := os.MkdirAll(filepath.Join(dir, embedDir), 0o755); err != nil {
		return nil, fmt.Errorf("store: create vault: %w", err)
	}
	return &Vault{dir: dir}, nil
}

// Dir returns the vault root, the directory a static file server should
// expose.
func (v *Vault) Dir() string { return v.dir }

// Save persists data under the identity and returns the vault-relative path
// plus the checksum to record.
func (v *Vault) Save(id string, data []byte) (relPath, checksum string, err error) {
	relPath = filepath.Join(embedDir, id+".png")
	sum := blake3.Sum256(data)
	if err := os.WriteFile(filepath.Join(v.dir, relPath), data, 0o644); err != nil {
		return "", "", fmt.Errorf("store: persist reference: %w", err)
	}
	return relPath, hex.EncodeToString(sum[:]), nil
}

// Load reads a previously saved reference and verifies it is byte-identical
// to what was saved.
func (v *Vault) Load(relPath, checksum string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(v.dir, relPath))
	if err != nil {
		return nil, fmt.Errorf("store: read reference: %w", err)
	}
	sum := blake3.Sum256(data)
	if hex.EncodeToString(sum[:]) != checksum {
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, relPath)
	}
	return data, nil
}
