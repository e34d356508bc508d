package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/extract"
)

// NewRegistry returns the journal parser registry with every supported
// publisher strategy and the vendor aliases whose markup matches one of
// them.
func NewRegistry() *extract.Registry {
	registry := extract.NewRegistry()
	registry.Register(newNatureParser())
	registry.Register(newScienceParser())
	registry.Register(newCellParser())
	registry.Register(newArxivParser())
	registry.Register(newGenericParser())

	registry.Alias("pnas", "nature")
	registry.Alias("oup", "nature")
	registry.Alias("nejm", "science")
	registry.Alias("plos", "cell")
	registry.Alias("default", "generic")
	return registry
}

// Nature marks primary research with the s41586 path segment; d41586 is the
// news and commentary section.
func newNatureParser() extract.Parser {
	return &rulesParser{
		name: "nature",
		isResearch: func(article domain.Article) bool {
			return strings.Contains(article.Link, "s41586") && !strings.Contains(article.Link, "d41586")
		},
		abstractSelectors: []string{
			`div[data-test="abstract-section"] p`,
			`.c-article-section__content p`,
			`#abstract-content p`,
			`.c-article-body__section p`,
		},
		authorSelectors: []string{
			`span[data-test="author-name"]`,
			`.c-article-author-list__item .c-author-list__name`,
			`.c-author-list__name`,
			`.author-name`,
		},
		affiliationSelectors: []string{
			`.c-article-author-affiliation-list li`,
			`.c-article-author-affiliation__address`,
		},
		keywordSelectors: []string{
			`.c-subject-list__item a`,
			`.c-article-subject-list a`,
			`.subject a`,
		},
	}
}

func newScienceParser() extract.Parser {
	return &rulesParser{
		name: "science",
		isResearch: func(article domain.Article) bool {
			return strings.Contains(article.Link, "doi/10.1126/science")
		},
		abstractSelectors: []string{
			`.article-abstract-content p`,
			`.abstract-content p`,
			`#abstract p`,
			`.executive-summary p`,
		},
		authorSelectors: []string{
			`.authors-list .author-name`,
			`.author .author-name`,
			`.contrib-group .contrib .name`,
		},
		affiliationSelectors: []string{
			`.aff .institution`,
			`.affiliations li`,
		},
	}
}

func newCellParser() extract.Parser {
	return &rulesParser{
		name: "cell",
		isResearch: func(article domain.Article) bool {
			return strings.Contains(article.Link, "cell/fulltext")
		},
		abstractSelectors: []string{
			`.abstract-content p`,
			`#abstract p`,
			`.summary p`,
		},
		authorSelectors: []string{
			`.author-group .author`,
			`.author-list .author-name`,
		},
	}
}

// arXiv entries are all preprints; everything counts as research.
func newArxivParser() extract.Parser {
	return &rulesParser{
		name: "arxiv",
		abstractSelectors: []string{
			`blockquote.abstract`,
		},
		authorSelectors: []string{
			`.authors a`,
		},
		keywordSelectors: []string{
			`td.tablecell.subjects .primary-subject`,
		},
	}
}

// Title words that mark commentary rather than primary research; used by
// the generic strategy when no URL pattern is recognized.
var nonResearchTitleWords = []string{"news", "editorial", "opinion", "comment", "correspondence"}

// genericParser handles unknown publishers by trying common metadata and
// DOM patterns in priority order; it needs meta-tag attribute access, which
// the selector rule engine does not cover.
type genericParser struct {
	page rulesParser
}

var _ extract.Parser = (*genericParser)(nil)

func newGenericParser() extract.Parser {
	return &genericParser{
		page: rulesParser{
			name: "generic",
			abstractSelectors: []string{
				`div.abstract p`,
				`section.abstract p`,
				`p.abstract`,
				`div.abstract`,
				`section.abstract`,
			},
			authorSelectors: []string{
				`span.authors`,
				`div.authors`,
			},
		},
	}
}

func (g *genericParser) Name() string {
	return "generic"
}

func (g *genericParser) IsResearchArticle(article domain.Article) bool {
	title := strings.ToLower(article.Title)
	for _, word := range nonResearchTitleWords {
		if strings.Contains(title, word) {
			return false
		}
	}
	return true
}

func (g *genericParser) Extract(doc *goquery.Document) extract.Fields {
	fields := g.page.Extract(doc)

	if fields.Abstract == "" {
		fields.Abstract = metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`)
	}
	if len(fields.Authors) == 0 {
		if author := metaContent(doc, `meta[name="author"]`); author != "" {
			fields.Authors = []string{author}
		}
	}
	if len(fields.Keywords) == 0 {
		if keywords := metaContent(doc, `meta[name="keywords"]`); keywords != "" {
			for _, kw := range strings.Split(keywords, ",") {
				if kw = strings.TrimSpace(kw); kw != "" {
					fields.Keywords = append(fields.Keywords, kw)
				}
			}
		}
	}
	return fields
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, selector := range selectors {
		if content, ok := doc.Find(selector).First().Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}
	return ""
}
