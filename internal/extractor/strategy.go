package extractor

import "github.com/PuerkitoBio/goquery"

// Strategy is one candidate location for the article content. Strategies
// are tried in order and the first one that yields an element wins.
type Strategy struct {
	Name     string
	Selector string
	// Accept, when set, filters the elements matched by Selector.
	Accept func(*goquery.Selection) bool
}

// BodyStrategy is reported when no strategy matched and the whole body is used.
const BodyStrategy = "body"

// DefaultStrategies returns the note.com container candidates, from the most
// specific to the most generic.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: "article", Selector: "article"},
		{Name: "note-body", Selector: "div.note-common-styles__textnote-body"},
		{Name: "note", Selector: "div.note"},
		{Name: "main", Selector: "main"},
	}
}

// SelectorStrategies builds a strategy list from plain CSS selectors.
func SelectorStrategies(selectors []string) []Strategy {
	out := make([]Strategy, 0, len(selectors))
	for _, s := range selectors {
		out = append(out, Strategy{Name: s, Selector: s})
	}
	return out
}

func (s Strategy) match(doc *goquery.Document) *goquery.Selection {
	found := doc.Find(s.Selector)
	if s.Accept != nil {
		found = found.FilterFunction(func(_ int, sel *goquery.Selection) bool {
			return s.Accept(sel)
		})
	}
	return found.First()
}
