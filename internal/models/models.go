package models

import "time"

// Message roles stored in session history.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Article is a successfully parsed news page. Articles are transient:
// they exist only between the parser and the chunker.
type Article struct {
	Title       string
	Content     string
	URL         string
	Source      string
	PublishedAt *time.Time
}

// Chunk is a bounded span of article text used as a retrieval unit.
type Chunk struct {
	Text         string
	ArticleURL   string
	ArticleTitle string
	Source       string
	PublishedAt  *time.Time
}

// Meta returns the chunk metadata stored alongside its embedding.
func (c Chunk) Meta() map[string]interface{} {
	meta := map[string]interface{}{
		"article_url":   c.ArticleURL,
		"article_title": c.ArticleTitle,
		"source":        c.Source,
	}
	if c.PublishedAt != nil {
		meta["published_date"] = c.PublishedAt.Format(time.RFC3339)
	}
	return meta
}

// Message is a single turn in a chat session. Messages are immutable
// once appended; ordering is append order within a session.
type Message struct {
	ID        string                 `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// SearchResult is one nearest-neighbor hit from the vector store.
type SearchResult struct {
	ID    string                 `json:"id"`
	Text  string                 `json:"text"`
	Score float32                `json:"score"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// Source is one news outlet to crawl. LinkPattern is a substring that
// article hrefs on the outlet's landing page must contain.
type Source struct {
	URL         string `json:"url"`
	LinkPattern string `json:"link_pattern"`
}
