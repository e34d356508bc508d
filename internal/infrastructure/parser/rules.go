package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/extract"
)

const (
	// Publisher pages pad short teaser texts into abstract slots; anything
	// below this length is treated as a failed match.
	minAbstractLength = 50
	maxAuthors        = 10
)

// rulesParser implements extract.Parser from ordered selector candidate
// lists. Publisher markup drifts over time; the first selector yielding a
// usable value wins and later candidates absorb older page revisions.
type rulesParser struct {
	name                 string
	isResearch           func(article domain.Article) bool
	abstractSelectors    []string
	authorSelectors      []string
	affiliationSelectors []string
	keywordSelectors     []string
}

var _ extract.Parser = (*rulesParser)(nil)

func (p *rulesParser) Name() string {
	return p.name
}

func (p *rulesParser) IsResearchArticle(article domain.Article) bool {
	if p.isResearch == nil {
		return true
	}
	return p.isResearch(article)
}

func (p *rulesParser) Extract(doc *goquery.Document) extract.Fields {
	return extract.Fields{
		Abstract:     firstAbstract(doc, p.abstractSelectors),
		Authors:      firstList(doc, p.authorSelectors, maxAuthors),
		Affiliations: firstList(doc, p.affiliationSelectors, 0),
		Keywords:     firstList(doc, p.keywordSelectors, 0),
	}
}

// firstAbstract joins up to three paragraphs matched by the first selector
// that produces text above the minimum length.
func firstAbstract(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		var parts []string
		doc.Find(selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
			if len(parts) >= 3 {
				return false
			}
			if text := strings.TrimSpace(sel.Text()); text != "" {
				parts = append(parts, text)
			}
			return true
		})

		abstract := strings.TrimSpace(strings.Join(parts, " "))
		abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract:"))
		abstract = strings.TrimSpace(strings.TrimPrefix(abstract, "Abstract"))
		if len(abstract) >= minAbstractLength {
			return abstract
		}
	}
	return ""
}

// firstList collects deduplicated texts from the first selector with any
// match; limit 0 means unlimited.
func firstList(doc *goquery.Document, selectors []string, limit int) []string {
	for _, selector := range selectors {
		var values []string
		seen := map[string]struct{}{}

		doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if text == "" {
				return
			}
			if _, dup := seen[text]; dup {
				return
			}
			seen[text] = struct{}{}
			values = append(values, text)
		})

		if len(values) > 0 {
			if limit > 0 && len(values) > limit {
				values = values[:limit]
			}
			return values
		}
	}
	return nil
}
