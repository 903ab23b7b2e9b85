// Package publish writes the compiled newsletter to disk and emails it.
package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Document wraps a compiled newsletter body into a full HTML page. Newlines
// in the body become <br> tags.
func Document(body string) string {
	return "<html><body>" + strings.ReplaceAll(body, "\n", "<br>") + "</body></html>"
}

// Save writes the newsletter to path, overwriting any previous file.
func Save(body, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(Document(body)), 0o644); err != nil {
		return fmt.Errorf("writing newsletter: %w", err)
	}
	return nil
}
