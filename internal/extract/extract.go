package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"PaperDigest/internal/domain"
)

// Fields is the best-effort result of one page extraction. Any subset may be
// empty; callers keep their previous values for empty fields.
type Fields struct {
	Abstract     string
	Authors      []string
	Affiliations []string
	Keywords     []string
}

// Parser captures a single per-journal extraction strategy.
type Parser interface {
	Name() string
	// IsResearchArticle classifies primary research vs. news/commentary from
	// URL and title heuristics, without touching the network.
	IsResearchArticle(article domain.Article) bool
	// Extract pulls fields out of a fetched article page.
	Extract(doc *goquery.Document) Fields
}

// Registry keeps a mapping from parser names to their implementations.
type Registry struct {
	parsers map[string]Parser
	aliases map[string]string
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{}, aliases: map[string]string{}}
}

// Register adds or replaces a parser implementation.
func (r *Registry) Register(parser Parser) {
	if r.parsers == nil {
		r.parsers = map[string]Parser{}
	}
	r.parsers[parser.Name()] = parser
}

// Alias routes one parser type to another's implementation (e.g. publishers
// whose page markup matches an already-supported vendor).
func (r *Registry) Alias(name, target string) {
	if r.aliases == nil {
		r.aliases = map[string]string{}
	}
	r.aliases[strings.ToLower(name)] = strings.ToLower(target)
}

// Resolve returns a parser by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Parser, error) {
	key := strings.ToLower(name)
	if target, ok := r.aliases[key]; ok {
		key = target
	}
	if parser, ok := r.parsers[key]; ok {
		return parser, nil
	}
	return nil, fmt.Errorf("parser %s is not registered", name)
}
