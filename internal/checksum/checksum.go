// Package checksum computes and verifies recording file digests.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// Prefix names the digest algorithm in formatted checksums.
const Prefix = "SHA-256:"

// MismatchError is returned by Verify when the computed digest differs from
// the recorded one.
type MismatchError struct {
	Path     string
	Expected string
	Computed string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: recorded %s, computed %s", e.Path, e.Expected, e.Computed)
}

// Reader returns the formatted SHA-256 digest of everything read from r.
func Reader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(h.Sum(nil)), nil
}

// File streams the file at path through SHA-256 and returns the digest as
// "SHA-256:<hex>".
func File(path string) (sum string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	if sum, err = Reader(f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return sum, nil
}

// Verify recomputes the digest of path and compares it with expected. The
// comparison ignores hex letter case.
func Verify(path, expected string) error {
	computed, err := File(path)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(expected, Prefix) || !strings.EqualFold(expected, computed) {
		return &MismatchError{Path: path, Expected: expected, Computed: computed}
	}
	return nil
}
