package processor

import (
	"regexp"
	"strings"

	"github.com/xhad/newschat/internal/models"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

type ProcessorConfig struct {
	// TargetWords is the word budget a body chunk accumulates toward.
	TargetWords int
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.TargetWords == 0 {
		config.TargetWords = 250
	}

	return Processor{
		config: config,
	}
}

func New() Processor {
	return NewWithConfig(ProcessorConfig{})
}

// Process flattens articles into retrieval chunks.
func (p *Processor) Process(articles []models.Article) []models.Chunk {
	var chunks []models.Chunk
	for _, article := range articles {
		chunks = append(chunks, p.Chunk(article)...)
	}
	return chunks
}

// Chunk splits one article into paragraph-bounded chunks. The title is
// always emitted as its own leading chunk. Paragraphs accumulate
// greedily until the word budget would be exceeded; a single paragraph
// longer than the budget is never split further.
func (p *Processor) Chunk(article models.Article) []models.Chunk {
	chunks := []models.Chunk{p.newChunk("Title: "+article.Title, article)}

	var current strings.Builder
	currentWords := 0

	for _, paragraph := range splitParagraphs(article.Content) {
		words := len(strings.Fields(paragraph))

		if currentWords+words > p.config.TargetWords && current.Len() > 0 {
			chunks = append(chunks, p.newChunk(current.String(), article))
			current.Reset()
			current.WriteString(paragraph)
			currentWords = words
			continue
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(paragraph)
		currentWords += words
	}

	if current.Len() > 0 {
		chunks = append(chunks, p.newChunk(current.String(), article))
	}

	return chunks
}

func (p *Processor) newChunk(text string, article models.Article) models.Chunk {
	return models.Chunk{
		Text:         text,
		ArticleURL:   article.URL,
		ArticleTitle: article.Title,
		Source:       article.Source,
		PublishedAt:  article.PublishedAt,
	}
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			paragraphs = append(paragraphs, trimmed)
		}
	}
	return paragraphs
}
