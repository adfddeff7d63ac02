// File: internal/infra/blob/keys.go
package blob

import (
	"fmt"
	"path/filepath"
	"strings"

	"photo-enhance-pipeline/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.KeyStrategy = (*Keys)(nil)

// Keys derives deterministic object keys for each pipeline stage. The same
// inputs always map to the same key, so reprocessing a job overwrites its own
// artifacts instead of leaking new ones.
type Keys struct{}

func NewKeys() *Keys { return &Keys{} }

func (*Keys) UploadKey(userID, jobID, fileName string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", userID, jobID, sanitizeName(fileName))
}

func (*Keys) OptimizedKey(userID, jobID, fileName string) string {
	return fmt.Sprintf("optimized/%s/%s/%s", userID, jobID, sanitizeName(fileName))
}

func (*Keys) FinalKey(userID, jobID, fileName string) string {
	return fmt.Sprintf("results/%s/%s/%s", userID, jobID, sanitizeName(fileName))
}

// sanitizeName flattens path tricks out of user-supplied file names.
func sanitizeName(name string) string {
	name = filepath.Base(filepath.Clean(name))
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "image"
	}
	return strings.ReplaceAll(name, " ", "_")
}
