package extractor

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// contentSelectors is the container priority list: semantic containers
// first, generic content wrappers, then the EUR-Lex document containers.
var contentSelectors = []string{
	"article",
	"main",
	`[role="main"]`,
	".content",
	"#content",
	".eli-main-body",
	"#docHtml",
}

// Structured extraction shorter than this is assumed to have failed (for
// example a JS-rendered shell) and triggers the raw-stripped fallback.
const minStructuredLength = 200

const (
	minParagraphLength = 20
	minListItemLength  = 10
)

func (e *Extractor) extractHTMLBody(resp *http.Response) (string, error) {
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing html: %v", err)
	}
	return extractHTML(doc), nil
}

func extractHTML(doc *goquery.Document) string {
	container := selectContainer(doc)
	text := structuredText(container)
	if len(text) < minStructuredLength {
		text = strippedText(container)
	}
	return text
}

func selectContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range contentSelectors {
		if selected := doc.Find(selector); selected.Length() > 0 {
			return selected.First()
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body.First()
	}
	return doc.Selection
}

// structuredText walks the container and classifies sub-elements into
// headings, paragraphs, list items and tables, emitted in document order.
func structuredText(container *goquery.Selection) string {
	var parts []string

	container.Find("h1, h2, h3, h4, h5, h6, p, li, table").Each(func(_ int, s *goquery.Selection) {
		name := goquery.NodeName(s)

		// Table contents are flattened when the table itself is visited.
		if name != "table" && s.ParentsFiltered("table").Length() > 0 {
			return
		}

		switch name {
		case "p":
			text := collapseWhitespace(s.Text())
			if len(text) >= minParagraphLength {
				parts = append(parts, text)
			}
		case "li":
			text := collapseWhitespace(s.Text())
			if len(text) >= minListItemLength {
				parts = append(parts, "• "+text)
			}
		case "table":
			if rows := flattenTable(s); len(rows) > 0 {
				parts = append(parts, "[TABLE]")
				parts = append(parts, rows...)
				parts = append(parts, "[/TABLE]")
			}
		default: // h1..h6
			text := collapseWhitespace(s.Text())
			if text != "" {
				level := int(name[1] - '0')
				parts = append(parts, strings.Repeat("#", level)+" "+text)
			}
		}
	})

	return strings.Join(parts, "\n")
}

func flattenTable(table *goquery.Selection) []string {
	var rows []string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			if text := collapseWhitespace(cell.Text()); text != "" {
				cells = append(cells, text)
			}
		})
		if len(cells) > 0 {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	return rows
}

// strippedText is the brute-force fallback: drop non-content elements and
// render whatever text remains.
func strippedText(container *goquery.Selection) string {
	clone := container.Clone()
	clone.Find("script, style, nav, header, footer, aside, noscript").Remove()
	return collapseWhitespace(clone.Text())
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}
