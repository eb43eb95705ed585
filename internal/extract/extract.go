// Package extract turns catalog detail pages into structured opportunities.
// Extraction is deterministic: the same page bytes always produce the same
// opportunity, and nothing here touches the network or the store.
package extract

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"

	"github.com/solidarity-tools/harvest-cli/internal/model"
)

// Extractor parses detail-page HTML. It holds no per-call state and is safe
// for concurrent use.
type Extractor struct {
	mappings map[string]string
}

// New creates an extractor. A nil or empty mappings falls back to
// DefaultMappings.
func New(mappings map[string]string) *Extractor {
	if len(mappings) == 0 {
		mappings = DefaultMappings()
	}
	return &Extractor{mappings: mappings}
}

// Extract parses one detail page. fallbackTitle is the listing title, used
// when the page carries no title heading; if both are empty the item fails.
// Sections absent from the page leave their fields empty.
func (e *Extractor) Extract(opid, pageURL, fallbackTitle string, r io.Reader) (*model.Opportunity, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse detail page for %s", opid)
	}

	opp := &model.Opportunity{
		Opid: opid,
		URL:  pageURL,
	}

	title := findTitle(doc)
	if title == "" {
		title = strings.Join(strings.Fields(fallbackTitle), " ")
	}
	if title == "" {
		return nil, eris.Errorf("extract: opportunity %s has no title", opid)
	}
	opp.Title = title

	for key, value := range collectSections(doc, e.mappings) {
		setField(opp, key, value)
	}

	opp.ParticipantCountries = splitSet(opp.ParticipantsFrom)
	opp.TopicsList = splitSet(opp.ActivityTopics)

	return opp, nil
}

// findTitle returns the text of the first <h1 class="od-title">.
func findTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "h1" && hasClass(n, "od-title") {
			title = nodeText(n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// collectSections matches <h6> headings against the section mappings and
// captures the first <p> that follows each match in document order. The
// first occurrence of a heading wins.
func collectSections(doc *html.Node, mappings map[string]string) map[string]string {
	nodes := flatten(doc)
	out := make(map[string]string)
	for i, n := range nodes {
		if n.Type != html.ElementNode || n.Data != "h6" {
			continue
		}
		key, ok := mappings[nodeText(n)]
		if !ok {
			continue
		}
		if _, done := out[key]; done {
			continue
		}
		for _, next := range nodes[i+1:] {
			if next.Type == html.ElementNode && next.Data == "p" {
				out[key] = paragraphText(next)
				break
			}
		}
	}
	return out
}

// flatten returns every node in document (preorder) order.
func flatten(doc *html.Node) []*html.Node {
	var nodes []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		nodes = append(nodes, n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return nodes
}

func setField(o *model.Opportunity, key, value string) {
	switch key {
	case fieldDescription:
		o.Description = value
	case fieldAccommodation:
		o.Accommodation = value
	case fieldParticipantProfile:
		o.ParticipantProfile = value
	case fieldActivityDates:
		o.ActivityDates = value
	case fieldActivityLocation:
		o.ActivityLocation = value
	case fieldParticipantsFrom:
		o.ParticipantsFrom = value
	case fieldActivityTopics:
		o.ActivityTopics = value
	case fieldApplicationDeadline:
		o.ApplicationDeadline = value
	}
}

// nodeText concatenates the descendant text of n with whitespace collapsed
// to single spaces.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// paragraphText joins the non-empty text chunks of a paragraph with
// newlines, so multi-line content keeps its line structure.
func paragraphText(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, "\n")
}

// splitSet splits a comma-separated field into trimmed values, dropping
// duplicates case-insensitively while keeping the first spelling seen.
func splitSet(s string) []string {
	if s == "" {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(s, ",") {
		v := strings.TrimSpace(part)
		if v == "" {
			continue
		}
		k := strings.ToLower(v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
