package assembler

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/user/article-archiver/internal/domain"
)

// DateLayout is the conversion date format printed in the footer.
const DateLayout = "2006-01-02"

//go:embed article.html.tmpl
var articleTemplate string

type page struct {
	Title       string
	Description string
	Content     template.HTML
	SourceURL   string
	Date        string
}

// Assembler renders extracted articles into a standalone HTML document.
type Assembler struct {
	tmpl *template.Template
	now  func() time.Time
}

func New() (*Assembler, error) {
	tmpl, err := template.New("article").Parse(articleTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse article template: %w", err)
	}
	return &Assembler{tmpl: tmpl, now: time.Now}, nil
}

// Render writes the document for data to w. The content markup is inserted
// verbatim; title and description are escaped.
func (a *Assembler) Render(w io.Writer, data *domain.ArticleData, sourceURL string) error {
	return a.tmpl.Execute(w, page{
		Title:       data.Title,
		Description: data.Description,
		Content:     template.HTML(data.Content),
		SourceURL:   sourceURL,
		Date:        a.now().Format(DateLayout),
	})
}

// WriteFile renders the document and writes it to path, replacing any
// existing file.
func (a *Assembler) WriteFile(path string, data *domain.ArticleData, sourceURL string) error {
	var buf bytes.Buffer
	if err := a.Render(&buf, data, sourceURL); err != nil {
		return fmt.Errorf("render article: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

func writeFile(path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
