// Package identity computes the two fingerprints every archived asset
// carries: an exact content hash and, for images, a perceptual hash used
// for near-duplicate detection.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/bits"
	"os"
	"strconv"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

// FileSHA256 streams path through SHA-256 and returns the lowercase hex
// digest. The file is never loaded into memory whole.
func FileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ImagePhash decodes the image at path and returns its 64-bit perceptual
// hash as 16 hex characters. EXIF orientation is applied before hashing so
// a rotated export of the same photo lands near its original.
func ImagePhash(path string) (string, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", path, err)
	}
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return "", fmt.Errorf("perceptual hash %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", hash.GetHash()), nil
}

// HammingDistance counts the differing bits between two hex-encoded
// perceptual hashes. Identical images score 0; unrelated photos typically
// score well above 20.
func HammingDistance(a, b string) (int, error) {
	x, err := parsePhash(a)
	if err != nil {
		return 0, err
	}
	y, err := parsePhash(b)
	if err != nil {
		return 0, err
	}
	return bits.OnesCount64(x ^ y), nil
}

func parsePhash(value string) (uint64, error) {
	parsed, err := strconv.ParseUint(value, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse perceptual hash %q: %w", value, err)
	}
	return parsed, nil
}
