package extractor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeProcessor struct {
	calls int
	seen  string
	err   error
}

func (f *fakeProcessor) Process(_ context.Context, container *goquery.Selection) (int, error) {
	f.calls++
	f.seen = goquery.NodeName(container)
	container.Find("img").SetAttr("src", "images/image_001.png")
	return container.Find("img").Length(), f.err
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestMetadata(t *testing.T) {
	tests := []struct {
		name            string
		html            string
		wantTitle       string
		wantDescription string
	}{
		{
			name: "both present",
			html: `<html><head>
				<meta property="og:title" content="猫の話">
				<meta property="og:description" content="A story about cats">
				</head><body></body></html>`,
			wantTitle:       "猫の話",
			wantDescription: "A story about cats",
		},
		{
			name:            "absent",
			html:            `<html><head><title>Ignored</title></head><body></body></html>`,
			wantTitle:       "Article",
			wantDescription: "",
		},
		{
			name:            "tag without content attribute",
			html:            `<html><head><meta property="og:title"></head></html>`,
			wantTitle:       "Article",
			wantDescription: "",
		},
		{
			name:            "name attribute is not property",
			html:            `<html><head><meta name="og:title" content="Nope"></head></html>`,
			wantTitle:       "Article",
			wantDescription: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, description := Metadata(parse(t, tt.html))
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantDescription, description)
		})
	}
}

func TestSelectContainer_Priority(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantName string
		wantText string
	}{
		{
			name:     "article wins over everything",
			body:     `<main>m</main><div class="note">n</div><article>a</article>`,
			wantName: "article",
			wantText: "a",
		},
		{
			name:     "note body before generic note",
			body:     `<div class="note">n</div><div class="x note-common-styles__textnote-body">nb</div>`,
			wantName: "note-body",
			wantText: "nb",
		},
		{
			name:     "generic note before main",
			body:     `<main>m</main><div class="wrap note">n</div>`,
			wantName: "note",
			wantText: "n",
		},
		{
			name:     "main last",
			body:     `<main>m</main><section>s</section>`,
			wantName: "main",
			wantText: "m",
		},
		{
			name:     "first match in document order",
			body:     `<article>first</article><article>second</article>`,
			wantName: "article",
			wantText: "first",
		},
	}

	e := New(nil, nil, zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, name := e.SelectContainer(parse(t, "<html><body>"+tt.body+"</body></html>"))
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantText, sel.Text())
		})
	}
}

func TestSelectContainer_FallsBackToBodyWithWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	e := New(nil, nil, zap.New(core))

	sel, name := e.SelectContainer(parse(t, `<html><body><p>loose</p></body></html>`))

	assert.Equal(t, BodyStrategy, name)
	assert.Equal(t, "body", goquery.NodeName(sel))
	assert.Equal(t, 1, logs.FilterMessageSnippet("using full body").Len())
}

func TestSelectContainer_CustomStrategies(t *testing.T) {
	strategies := []Strategy{
		{
			Name:     "long-section",
			Selector: "section",
			Accept: func(s *goquery.Selection) bool {
				return len(s.Text()) > 5
			},
		},
	}
	e := New(strategies, nil, zap.NewNop())

	sel, name := e.SelectContainer(parse(t, `<html><body><section>tiny</section><section>long enough</section></body></html>`))
	assert.Equal(t, "long-section", name)
	assert.Equal(t, "long enough", sel.Text())
}

func TestSelectorStrategies(t *testing.T) {
	got := SelectorStrategies([]string{"div.post", "main"})
	require.Len(t, got, 2)
	assert.Equal(t, "div.post", got[0].Name)
	assert.Equal(t, "main", got[1].Selector)
}

func TestExtract_ProcessesContainerBeforeSerializing(t *testing.T) {
	html := `<html><head><meta property="og:title" content="T"></head>
		<body><nav>menu</nav><article><p>Hello</p><img src="//cdn.example.com/a.png"></article></body></html>`

	proc := &fakeProcessor{}
	data, err := New(nil, proc, zap.NewNop()).Extract(context.Background(), html)
	require.NoError(t, err)

	assert.Equal(t, 1, proc.calls)
	assert.Equal(t, "article", proc.seen)
	assert.Equal(t, "T", data.Title)
	assert.Equal(t, "", data.Description)
	assert.True(t, strings.HasPrefix(data.Content, "<article>"))
	assert.Contains(t, data.Content, `<img src="images/image_001.png"/>`)
	assert.NotContains(t, data.Content, "menu")
}

func TestExtract_NoImagesContentUnchanged(t *testing.T) {
	html := `<html><body><article><h2>Title</h2><p>Text &amp; more</p></article></body></html>`

	data, err := New(nil, nil, zap.NewNop()).Extract(context.Background(), html)
	require.NoError(t, err)
	assert.Equal(t, `<article><h2>Title</h2><p>Text &amp; more</p></article>`, data.Content)
}

func TestExtract_ProcessorError(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("disk full")}
	_, err := New(nil, proc, zap.NewNop()).Extract(context.Background(), `<html><body><article></article></body></html>`)
	assert.Error(t, err)
}
