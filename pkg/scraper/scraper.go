package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/xhad/newschat/internal/models"
	"golang.org/x/time/rate"
)

// ErrNoArticle marks pages that fetched fine but yielded no usable
// title or body. Callers skip them without failing the run.
var ErrNoArticle = errors.New("no article content")

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

type ScraperConfig struct {
	RequestDelay         time.Duration // minimum spacing between outbound fetches
	Timeout              time.Duration
	MaxArticlesPerSource int
	UserAgent            string
	OnProgress           func(url string)
}

type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if config.RequestDelay == 0 {
		config.RequestDelay = 2 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.MaxArticlesPerSource == 0 {
		config.MaxArticlesPerSource = 5
	}
	if config.UserAgent == "" {
		config.UserAgent = defaultUserAgent
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Every(config.RequestDelay), 1),
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// ScrapeSources fetches each source's landing page, follows its first
// few article links, and returns every article that parsed. Sources
// and articles that fail are logged and skipped.
func (s *Scraper) ScrapeSources(ctx context.Context, sources []models.Source) []models.Article {
	var articles []models.Article

	for _, source := range sources {
		log.Printf("[scraper] fetching news from %s", source.URL)

		doc, err := s.fetch(ctx, source.URL)
		if err != nil {
			log.Printf("[scraper] error fetching from %s: %v", source.URL, err)
			continue
		}

		links := s.extractLinks(doc, source)
		log.Printf("[scraper] found %d article links on %s", len(links), source.URL)

		if len(links) > s.config.MaxArticlesPerSource {
			links = links[:s.config.MaxArticlesPerSource]
		}

		for _, link := range links {
			article, err := s.ParseArticle(ctx, link)
			if err != nil {
				log.Printf("[scraper] error processing article %s: %v", link, err)
				continue
			}
			articles = append(articles, *article)
			if s.config.OnProgress != nil {
				s.config.OnProgress(link)
			}
		}
	}

	return articles
}

// ParseArticle downloads one article page and extracts title, body and
// publication date. Returns ErrNoArticle when the page has no h1, no
// recognized body container, or no paragraph text.
func (s *Scraper) ParseArticle(ctx context.Context, articleURL string) (*models.Article, error) {
	doc, err := s.fetch(ctx, articleURL)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		return nil, ErrNoArticle
	}

	container := findBodyContainer(doc)
	if container == nil {
		return nil, ErrNoArticle
	}
	container.Find("script, style, nav, footer, header, aside").Remove()

	var paragraphs []string
	container.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			paragraphs = append(paragraphs, text)
		}
	})
	if len(paragraphs) == 0 {
		return nil, ErrNoArticle
	}

	return &models.Article{
		Title:       title,
		Content:     strings.Join(paragraphs, "\n\n"),
		URL:         articleURL,
		Source:      sourceDomain(articleURL),
		PublishedAt: extractPublishedDate(doc),
	}, nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, rawURL)
	}

	return goquery.NewDocumentFromReader(resp.Body)
}

// extractLinks collects hrefs matching the source's pattern,
// absolutized against the source URL and deduplicated in first-seen
// order.
func (s *Scraper) extractLinks(doc *goquery.Document, source models.Source) []string {
	base, err := url.Parse(source.URL)
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, source.LinkPattern) {
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			return
		}
		absolute := base.ResolveReference(parsed).String()

		if !seen[absolute] {
			seen[absolute] = true
			links = append(links, absolute)
		}
	})

	return links
}

func findBodyContainer(doc *goquery.Document) *goquery.Selection {
	for _, selector := range []string{"article", "main", "div.article-body"} {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// extractPublishedDate reads a <time datetime> or published_time meta
// tag. Parse failures simply omit the date.
func extractPublishedDate(doc *goquery.Document) *time.Time {
	dateStr, _ := doc.Find("time").First().Attr("datetime")
	if dateStr == "" {
		dateStr, _ = doc.Find(`meta[property="article:published_time"]`).First().Attr("content")
	}
	if dateStr == "" {
		return nil
	}

	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, dateStr); err == nil {
			return &parsed
		}
	}
	return nil
}

func sourceDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
