package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/infrastructure/parser"
	"PaperDigest/internal/ports"
)

// Title keyword buckets mapped to Japanese research-field labels for the
// templated fallback.
var topicBuckets = []struct {
	keywords []string
	label    string
}{
	{[]string{"cancer", "tumor", "tumour", "oncolog"}, "がん研究"},
	{[]string{"quantum"}, "量子科学"},
	{[]string{"ai", "machine learning", "artificial intelligence", "neural network"}, "人工知能"},
	{[]string{"climate", "warming", "carbon"}, "気候科学"},
	{[]string{"gene", "genome", "genetic", "crispr", "dna"}, "遺伝学"},
}

var (
	urlPattern = regexp.MustCompile(`https?://\S+`)
	doiPattern = regexp.MustCompile(`(?i)doi:\s*\S+|10\.\d{4,9}/\S+`)
)

// FallbackSummarizer serves test runs without a configured model: every
// article gets the deterministic template summary.
type FallbackSummarizer struct{}

var _ ports.Summarizer = FallbackSummarizer{}

func (FallbackSummarizer) Summarize(_ context.Context, article domain.Article) string {
	return FallbackSummary(article)
}

// FallbackSummary builds a deterministic templated Japanese summary from
// whatever fields the article carries. It is never empty, so the
// notification stage never has to special-case missing summaries.
func FallbackSummary(article domain.Article) string {
	var b strings.Builder

	topic := detectTopic(article.Title)
	journal := article.Journal
	if journal == "" {
		journal = "科学誌"
	}

	if topic != "" {
		b.WriteString(fmt.Sprintf("%sに掲載された%s分野の論文です。", journal, topic))
	} else {
		b.WriteString(fmt.Sprintf("%sに掲載された研究論文です。", journal))
	}

	if title := strings.TrimSpace(article.Title); title != "" {
		if len([]rune(title)) > 80 {
			title = string([]rune(title)[:80]) + "..."
		}
		b.WriteString(fmt.Sprintf("タイトルは「%s」。", title))
	}

	switch {
	case len(article.Authors) == 1:
		b.WriteString(fmt.Sprintf("%s氏による報告。", article.Authors[0]))
	case len(article.Authors) > 1:
		b.WriteString(fmt.Sprintf("%s氏ら%d名の研究チームによる報告。", article.Authors[0], len(article.Authors)))
	}

	if sentence := firstSentence(cleanAbstract(article.Abstract, article.Summary)); sentence != "" {
		b.WriteString(fmt.Sprintf("要旨: %s", sentence))
	}

	if b.Len() == 0 {
		return "新しい研究論文が公開されました。詳細はリンク先をご覧ください。"
	}
	return b.String()
}

func detectTopic(title string) string {
	lowered := strings.ToLower(title)
	for _, bucket := range topicBuckets {
		for _, keyword := range bucket.keywords {
			if strings.Contains(lowered, keyword) {
				return bucket.label
			}
		}
	}
	return ""
}

// cleanAbstract strips HTML, URLs and DOIs from the best available text.
func cleanAbstract(abstract, summary string) string {
	text := abstract
	if text == "" {
		text = summary
	}
	text = parser.StripHTML(text)
	text = urlPattern.ReplaceAllString(text, "")
	text = doiPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

func firstSentence(text string) string {
	if text == "" {
		return ""
	}

	for _, stop := range []string{". ", "。"} {
		if idx := strings.Index(text, stop); idx >= 0 {
			return strings.TrimSpace(text[:idx+len(stop)])
		}
	}

	runes := []rune(text)
	if len(runes) > 120 {
		return string(runes[:120]) + "..."
	}
	return text
}
