package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/article-archiver/internal/domain"
	"go.uber.org/zap"
)

// DefaultTitle is used when the page carries no og:title.
const DefaultTitle = "Article"

// ImageProcessor rewrites the images inside the selected container.
type ImageProcessor interface {
	Process(ctx context.Context, container *goquery.Selection) (int, error)
}

// Extractor pulls the article metadata and content container out of a page.
type Extractor struct {
	strategies []Strategy
	images     ImageProcessor
	logger     *zap.Logger
}

// New creates an Extractor. An empty strategy list means DefaultStrategies.
// images may be nil, in which case the container is serialized untouched.
func New(strategies []Strategy, images ImageProcessor, l *zap.Logger) *Extractor {
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Extractor{
		strategies: strategies,
		images:     images,
		logger:     l,
	}
}

// Extract parses htmlContent and returns the article data with the content
// container already processed by the image processor.
func (e *Extractor) Extract(ctx context.Context, htmlContent string) (*domain.ArticleData, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title, description := Metadata(doc)
	data := &domain.ArticleData{
		Title:       title,
		Description: description,
	}

	container, strategy := e.SelectContainer(doc)
	if container.Length() == 0 {
		return data, nil
	}
	e.logger.Debug("selected content container", zap.String("strategy", strategy))

	if e.images != nil {
		if _, err := e.images.Process(ctx, container); err != nil {
			return nil, fmt.Errorf("process images: %w", err)
		}
	}

	content, err := goquery.OuterHtml(container)
	if err != nil {
		return nil, fmt.Errorf("serialize content: %w", err)
	}
	data.Content = content
	return data, nil
}

// SelectContainer returns the first container matched by the strategy list
// and the name of the strategy that matched. When nothing matches, the body
// element is returned under BodyStrategy.
func (e *Extractor) SelectContainer(doc *goquery.Document) (*goquery.Selection, string) {
	for _, s := range e.strategies {
		if sel := s.match(doc); sel.Length() > 0 {
			return sel, s.Name
		}
	}
	e.logger.Warn("could not find article content, using full body")
	return doc.Find("body").First(), BodyStrategy
}

// Metadata reads the Open Graph title and description.
func Metadata(doc *goquery.Document) (title, description string) {
	title = DefaultTitle
	if v, ok := metaProperty(doc, "og:title"); ok {
		title = v
	}
	description, _ = metaProperty(doc, "og:description")
	return title, description
}

func metaProperty(doc *goquery.Document, property string) (string, bool) {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First()
	if sel.Length() == 0 {
		return "", false
	}
	return sel.Attr("content")
}
