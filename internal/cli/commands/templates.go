package commands

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kingdombarber/insight/internal/prompt"
)

//go:embed templates/insight.yaml
var templateFS embed.FS

// scaffoldFile is one file written by init.
type scaffoldFile struct {
	Name    string
	Content func() ([]byte, error)
}

func scaffoldFiles(withPrompts bool) []scaffoldFile {
	files := []scaffoldFile{{
		Name:    "insight.yaml",
		Content: func() ([]byte, error) { return templateFS.ReadFile("templates/insight.yaml") },
	}}
	if withPrompts {
		files = append(files, scaffoldFile{
			Name:    "prompts.yaml",
			Content: func() ([]byte, error) { return prompt.DefaultCatalogYAML(), nil },
		})
	}
	return files
}

// writeScaffold writes files into dir. Existing files are kept unless force
// is set; the returned slice names the files that were written.
func writeScaffold(dir string, files []scaffoldFile, force bool) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		target := filepath.Join(dir, f.Name)
		if !force {
			if _, err := os.Stat(target); err == nil {
				continue
			}
		}
		content, err := f.Content()
		if err != nil {
			return written, fmt.Errorf("failed to read template %s: %w", f.Name, err)
		}
		if err := os.WriteFile(target, content, 0o600); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", target, err)
		}
		written = append(written, f.Name)
	}
	return written, nil
}
