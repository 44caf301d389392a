package assembler

import (
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/user/article-archiver/internal/domain"
)

// Markdown converts assembled articles to GitHub flavored markdown.
type Markdown struct {
	converter *md.Converter
}

func NewMarkdown() *Markdown {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &Markdown{converter: converter}
}

// Render returns the markdown document for data.
func (m *Markdown) Render(data *domain.ArticleData, sourceURL string) (string, error) {
	body, err := m.converter.ConvertString(data.Content)
	if err != nil {
		return "", fmt.Errorf("convert content: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", data.Title)
	if data.Description != "" {
		fmt.Fprintf(&b, "> %s\n\n", data.Description)
	}
	if body = strings.TrimSpace(body); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "---\n\nOriginal source: <%s>\n", sourceURL)
	return b.String(), nil
}

// WriteFile renders data as markdown to path, replacing any existing file.
func (m *Markdown) WriteFile(path string, data *domain.ArticleData, sourceURL string) error {
	out, err := m.Render(data, sourceURL)
	if err != nil {
		return err
	}
	return writeFile(path, []byte(out))
}
