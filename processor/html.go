package processor

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/ZaguanLabs/lazytl"
	"golang.org/x/net/html"
)

// HTMLProcessor extracts and applies translations to rich-text HTML field
// values, such as the body of a news item written in the CMS editor.
type HTMLProcessor struct {
	ignoredTags map[string]bool
}

// NewHTMLProcessor creates a new HTML processor with default ignored tags.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{
		ignoredTags: lazytl.IgnoredTags,
	}
}

// NewHTMLProcessorWithIgnoredTags creates a new HTML processor with custom ignored tags.
func NewHTMLProcessorWithIgnoredTags(tags []string) *HTMLProcessor {
	ignored := make(map[string]bool)
	for _, tag := range tags {
		ignored[strings.ToLower(tag)] = true
	}
	return &HTMLProcessor{
		ignoredTags: ignored,
	}
}

// parsedHTML holds the parsed document.
type parsedHTML struct {
	doc      *goquery.Document
	document bool // Input was a full document rather than a fragment
}

// Extract parses content and returns its translatable text nodes, one per
// distinct trimmed text, in document order.
func (p *HTMLProcessor) Extract(content string) (any, []lazytl.TextNode, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, nil, &lazytl.ProcessorError{
			Message:     "failed to parse HTML",
			Cause:       err,
			ContentType: p.ContentType(),
		}
	}

	var nodes []lazytl.TextNode
	seen := make(map[string]bool)

	p.walk(doc, func(n *html.Node, trimmed string) {
		hash := lazytl.HashText(trimmed)
		if seen[hash] {
			return
		}
		seen[hash] = true

		node := lazytl.TextNode{
			ID:       fmt.Sprintf("node-%d", len(nodes)),
			Text:     trimmed,
			Hash:     hash,
			Metadata: map[string]string{},
		}
		if n.Parent != nil {
			node.Metadata["parent_tag"] = n.Parent.Data
		}
		nodes = append(nodes, node)
	})

	return &parsedHTML{
		doc:      doc,
		document: strings.Contains(strings.ToLower(content), "<html"),
	}, nodes, nil
}

// Apply writes translations (keyed by node hash) into the parsed document
// and renders it in the same shape it was given: a fragment stays a
// fragment. Leading and trailing whitespace of every text node is kept.
func (p *HTMLProcessor) Apply(parsed any, nodes []lazytl.TextNode, translations map[string]string) (string, error) {
	ph, ok := parsed.(*parsedHTML)
	if !ok {
		return "", &lazytl.ProcessorError{
			Message:     "invalid parsed content type",
			ContentType: p.ContentType(),
		}
	}

	p.walk(ph.doc, func(n *html.Node, trimmed string) {
		if translated, ok := translations[lazytl.HashText(trimmed)]; ok {
			n.Data = preserveWhitespace(n.Data, translated)
		}
	})

	var out string
	var err error
	if ph.document {
		out, err = ph.doc.Html()
	} else {
		out, err = ph.doc.Find("body").Html()
	}
	if err != nil {
		return "", &lazytl.ProcessorError{
			Message:     "failed to serialize HTML",
			Cause:       err,
			ContentType: p.ContentType(),
		}
	}
	return out, nil
}

// ContentType returns "html".
func (p *HTMLProcessor) ContentType() string {
	return "html"
}

// walk calls fn for every non-blank text node outside ignored elements.
func (p *HTMLProcessor) walk(doc *goquery.Document, fn func(n *html.Node, trimmed string)) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && p.skip(n) {
			return
		}
		if n.Type == html.TextNode {
			if trimmed := strings.TrimSpace(n.Data); trimmed != "" {
				fn(n, trimmed)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}

	for _, n := range doc.Nodes {
		visit(n)
	}
}

// skip reports whether an element's subtree must stay untranslated.
func (p *HTMLProcessor) skip(n *html.Node) bool {
	if p.ignoredTags[strings.ToLower(n.Data)] {
		return true
	}
	for _, attr := range n.Attr {
		if attr.Key == "data-no-translate" || (attr.Key == "translate" && attr.Val == "no") {
			return true
		}
	}
	return false
}

// preserveWhitespace preserves the original leading/trailing whitespace.
func preserveWhitespace(original, translated string) string {
	leadingLen := len(original) - len(strings.TrimLeftFunc(original, unicode.IsSpace))
	trailingLen := len(original) - len(strings.TrimRightFunc(original, unicode.IsSpace))
	if leadingLen == len(original) {
		return translated
	}
	return original[:leadingLen] + translated + original[len(original)-trailingLen:]
}

// Verify HTMLProcessor implements ContentProcessor
var _ ContentProcessor = (*HTMLProcessor)(nil)
