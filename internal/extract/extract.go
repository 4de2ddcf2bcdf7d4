// Package extract turns fetched genealogy pages into ScrapeRecords.
//
// The source site renders a node page with the mathematician's name in
// the first h2, the dissertation title in #thesisTitle, degree, school
// and graduation year inside the first div > span block, the country
// as the alt text of a flag image, and advisees as rows of the first
// table (name link, school, year).
package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/mathgene/genealogy-crawler/internal/genealogy"
)

var idPattern = regexp.MustCompile(`id\.php\?id=(\d+)`)

// Extractor implements genealogy.Extractor for the source site markup.
type Extractor struct{}

// New builds an Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract parses a node page. Only a missing name is an error; every
// optional field that is absent yields nil. Students are returned in
// document order.
func (e *Extractor) Extract(doc genealogy.Document) (*genealogy.ScrapeRecord, error) {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", doc.URL, err)
	}

	name := headlineName(root)
	if name == "" {
		return nil, &genealogy.ExtractionError{URL: doc.URL, Reason: "name not found"}
	}

	rec := &genealogy.ScrapeRecord{
		Name:         name,
		Students:     students(root),
		Dissertation: dissertation(root),
		Country:      country(root),
	}
	rec.Degree, rec.School, rec.Year = degreeBlock(root)
	return rec, nil
}

// headlineName returns the first h2 text with interior whitespace
// collapsed to single spaces.
func headlineName(root *goquery.Document) string {
	texts := textNodes(root.Find("h2").First())
	if len(texts) == 0 {
		return ""
	}
	return strings.Join(strings.Fields(texts[0]), " ")
}

func dissertation(root *goquery.Document) *string {
	texts := textNodes(root.Find("#thesisTitle").First())
	if len(texts) == 0 {
		return nil
	}
	return optional(texts[0])
}

// degreeBlock reads the first div > span block: the degree title is the
// first text node, the school the second (a nested span), and the year
// the first text that parses as a small integer.
func degreeBlock(root *goquery.Document) (degree, school *string, year *int16) {
	texts := textNodes(root.Find("div > span").First())
	if len(texts) > 0 {
		degree = optional(texts[0])
	}
	if len(texts) > 1 {
		school = optional(texts[1])
	}
	for _, t := range texts {
		if y, err := strconv.ParseInt(strings.TrimSpace(t), 10, 16); err == nil {
			v := int16(y)
			year = &v
			break
		}
	}
	return degree, school, year
}

func country(root *goquery.Document) *string {
	alt, ok := root.Find("div > img").First().Attr("alt")
	if !ok {
		return nil
	}
	return optional(alt)
}

// students parses the advisee table. The first row is a header. Rows
// keep document order. A row without a linked id still yields a stub,
// but one that can never become a node row or an edge.
func students(root *goquery.Document) []genealogy.Student {
	table := root.Find("table").First()
	if table.Length() == 0 {
		return nil
	}

	var out []genealogy.Student
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		cells := row.Find("td")
		if cells.Length() == 0 {
			return
		}

		nameCell := cells.Eq(0)
		nameTexts := textNodes(nameCell)
		if len(nameTexts) == 0 {
			return
		}
		st := genealogy.Student{Name: reorderName(nameTexts[0])}

		if href, ok := nameCell.Find("a").First().Attr("href"); ok {
			if m := idPattern.FindStringSubmatch(href); m != nil {
				if id, err := strconv.Atoi(m[1]); err == nil {
					st.ID = &id
				}
			}
		}
		if cells.Length() > 1 {
			if texts := textNodes(cells.Eq(1)); len(texts) > 0 {
				st.School = optional(texts[0])
			}
		}
		if cells.Length() > 2 {
			if texts := textNodes(cells.Eq(2)); len(texts) > 0 {
				if y, err := strconv.ParseInt(strings.TrimSpace(texts[0]), 10, 16); err == nil {
					v := int16(y)
					st.Year = &v
				}
			}
		}
		out = append(out, st)
	})
	return out
}

// reorderName rewrites the table cell format "Last, First Middle" into
// "First Middle Last". Names without a comma pass through unchanged.
func reorderName(name string) string {
	parts := strings.Split(name, ",")
	if len(parts) < 2 {
		return strings.TrimSpace(name)
	}
	surname := strings.TrimSpace(parts[0])
	var b strings.Builder
	for _, part := range parts[1:] {
		b.WriteString(strings.TrimSpace(part))
		b.WriteByte(' ')
	}
	b.WriteString(surname)
	return b.String()
}

// textNodes collects the non-blank text nodes under sel in depth-first
// document order, mirroring how the markup interleaves text with
// nested elements.
func textNodes(sel *goquery.Selection) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if strings.TrimSpace(n.Data) != "" {
				out = append(out, n.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return out
}

func optional(s string) *string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
