package workflow

import (
	"fmt"
	"os"
	"path/filepath"
)

// writeFile writes content to path, creating any missing parent
// directories first.
func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("writeFile: mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writeFile: %s: %w", path, err)
	}
	return nil
}
