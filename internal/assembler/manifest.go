package assembler

import (
	"fmt"
	"time"

	"github.com/user/article-archiver/internal/domain"
	"gopkg.in/yaml.v3"
)

// Manifest lists what an archive run produced.
type Manifest struct {
	SourceURL   string               `yaml:"source_url"`
	Title       string               `yaml:"title"`
	Description string               `yaml:"description,omitempty"`
	OutputHTML  string               `yaml:"output_html"`
	ArchivedAt  time.Time            `yaml:"archived_at"`
	Images      []domain.ImageRecord `yaml:"images"`
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m *Manifest) error {
	out, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return writeFile(path, out)
}
