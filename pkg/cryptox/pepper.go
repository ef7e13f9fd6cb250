package cryptox

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrCreateKey reads a base64url key from path. When the file does not
// exist a new random key of size bytes is generated and written with 0600
// permissions. It serves both the password pepper and the token secret.
func LoadOrCreateKey(path string, size int) ([]byte, error) {
	path = filepath.Clean(path)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(string(raw)))
		if err != nil {
			return nil, fmt.Errorf("cryptox: decode key file %s: %w", path, err)
		}
		if len(key) < size {
			return nil, fmt.Errorf("cryptox: key file %s holds %d bytes, need %d", path, len(key), size)
		}
		return key, nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("cryptox: read key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("cryptox: create key dir: %w", err)
	}

	encoded, err := GenerateToken(size)
	if err != nil {
		return nil, err
	}
	// O_EXCL so two processes racing on first start never overwrite each other.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return LoadOrCreateKey(path, size)
		}
		return nil, fmt.Errorf("cryptox: create key file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(encoded); err != nil {
		return nil, fmt.Errorf("cryptox: write key file: %w", err)
	}
	return base64.RawURLEncoding.DecodeString(encoded)
}
