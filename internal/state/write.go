// internal/state/write.go
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// writeAtomic writes data via temp file + rename so readers never observe
// a partial file.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// safeName makes an identifier usable as a file name.
func safeName(id string) string {
	r := strings.NewReplacer("/", "_", ":", "_", "..", "_")
	return r.Replace(id)
}
