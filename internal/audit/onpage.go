// AngelaMos | 2026
// onpage.go

package audit

import (
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type Status string

const (
	StatusGood    Status = "good"
	StatusWarning Status = "warning"
)

const (
	titleMin       = 30
	titleMax       = 60
	descriptionMin = 120
	descriptionMax = 160
	missingAltMax  = 10.0
)

type OnPage struct {
	TitleLength       int     `json:"title_length"`
	TitleStatus       Status  `json:"title_status"`
	MetaDescLength    int     `json:"meta_desc_length"`
	MetaDescStatus    Status  `json:"meta_desc_status"`
	H1Count           int     `json:"h1_count"`
	H1Status          Status  `json:"h1_status"`
	ImageCount        int     `json:"image_count"`
	MissingAltPercent float64 `json:"missing_alt_percent"`
	AltStatus         Status  `json:"alt_status"`
}

type pageFacts struct {
	title          string
	hasTitle       bool
	description    string
	hasDescription bool
	h1             int
	images         int
	imagesNoAlt    int
}

// AnalyzeHTML runs the on-page checks over a document. Only the first
// <title> and the first description meta tag count. An <img> with a
// missing or empty alt attribute counts as missing alt text.
func AnalyzeHTML(r io.Reader) (*OnPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var f pageFacts
	walk(doc, &f)

	return evaluate(f), nil
}

func walk(n *html.Node, f *pageFacts) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Title:
			if !f.hasTitle {
				f.title = textContent(n)
				f.hasTitle = true
			}
		case atom.Meta:
			if !f.hasDescription && strings.EqualFold(attr(n, "name"), "description") {
				f.description = attr(n, "content")
				f.hasDescription = true
			}
		case atom.H1:
			f.h1++
		case atom.Img:
			f.images++
			if attr(n, "alt") == "" {
				f.imagesNoAlt++
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, f)
	}
}

func evaluate(f pageFacts) *OnPage {
	p := &OnPage{
		TitleLength:    utf8.RuneCountInString(strings.TrimSpace(f.title)),
		MetaDescLength: utf8.RuneCountInString(strings.TrimSpace(f.description)),
		H1Count:        f.h1,
		ImageCount:     f.images,
	}

	if f.images > 0 {
		pct := float64(f.imagesNoAlt) / float64(f.images) * 100
		p.MissingAltPercent = math.Round(pct*10) / 10
	}

	p.TitleStatus = within(p.TitleLength, titleMin, titleMax)
	p.MetaDescStatus = within(p.MetaDescLength, descriptionMin, descriptionMax)

	p.H1Status = StatusWarning
	if p.H1Count == 1 {
		p.H1Status = StatusGood
	}

	p.AltStatus = StatusWarning
	if p.MissingAltPercent < missingAltMax {
		p.AltStatus = StatusGood
	}

	return p
}

func within(n, lo, hi int) Status {
	if n >= lo && n <= hi {
		return StatusGood
	}
	return StatusWarning
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return sb.String()
}
