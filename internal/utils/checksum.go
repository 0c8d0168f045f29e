package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// SHA256Hex returns the SHA256 hash of the given data as a hex string.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashReader streams r through SHA256 and reports how many bytes it read.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, fmt.Errorf("read error: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ShortHash cuts a hex digest for display.
func ShortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
