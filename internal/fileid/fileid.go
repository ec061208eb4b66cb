// Package fileid derives stable knowledge entry ids from seed file locations.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
)

const prefix = "seed:"

// SourceRef returns the canonical reference stored on entries imported from path.
// Relative paths are made absolute against the working directory.
func SourceRef(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return filepath.Clean(path)
}

// SeedEntryID returns a stable id for the row-th data row of the seed file at
// path. The same path and row always yield the same id, so re-importing a file
// updates its entries instead of duplicating them.
func SeedEntryID(path string, row int) string {
	hash := sha256.Sum256([]byte(SourceRef(path) + "#" + strconv.Itoa(row)))
	return prefix + hex.EncodeToString(hash[:16])
}
