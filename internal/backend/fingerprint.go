package backend

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/spencertipping/bake/pkg/bake"
)

// FileFingerprint hashes the named file's contents with sha256. A missing
// file fingerprints to the empty string, which never equals a real
// content hash, so a rule whose input has vanished is correctly seen as
// not fresh.
func FileFingerprint(path string) (bake.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return bake.Fingerprint(hex.EncodeToString(h.Sum(nil))), nil
}

// FileFingerprints fingerprints each word as a file path, in order.
func FileFingerprints(words []bake.Word) ([]bake.Fingerprint, error) {
	out := make([]bake.Fingerprint, len(words))
	for i, w := range words {
		fp, err := FileFingerprint(string(w))
		if err != nil {
			return nil, err
		}
		out[i] = fp
	}
	return out, nil
}
