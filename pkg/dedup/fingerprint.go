package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"image"
	"io"
	"net/http"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	errs "typeporter/pkg/errors"
)

// sniffLen matches the amount http.DetectContentType examines
const sniffLen = 512

// IsImageFile sniffs file content and reports whether it holds an
// image. Detection is content-based rather than extension-based
// because archived assets can carry repaired or missing extensions.
func IsImageFile(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffLen)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	return strings.HasPrefix(http.DetectContentType(buf[:n]), "image/"), nil
}

// ImageFingerprint computes the 64-bit perceptual hash of an image
// file. Fingerprints within a small Hamming distance identify the
// same logical picture across resizes and re-encodes.
func ImageFingerprint(path string) (*goimagehash.ImageHash, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "failed to decode image %s: %v", path, err)
	}

	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, errs.Newf(errs.ErrorTypeDecode, "failed to fingerprint %s: %v", path, err)
	}
	return hash, nil
}

// ExactDigest returns the hex SHA-256 of a file's bytes
func ExactDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
