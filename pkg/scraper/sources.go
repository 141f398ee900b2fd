package scraper

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xhad/newschat/internal/models"
)

// DefaultSources is the built-in crawl list. Each entry pairs an
// outlet landing page with the href substring its article links carry.
// The patterns are brittle configuration data, not logic: they track
// whatever URL scheme each site happens to use today.
func DefaultSources() []models.Source {
	return []models.Source{
		{URL: "https://www.reuters.com/world/", LinkPattern: "/article/"},
		{URL: "https://www.bbc.com/news/world", LinkPattern: "/news/"},
		{URL: "https://www.theguardian.com/world", LinkPattern: "/article/"},
		{URL: "https://www.aljazeera.com/news/", LinkPattern: "/news/"},
		{URL: "https://www.dw.com/en/top-stories/s-9097", LinkPattern: "/en/"},
		{URL: "https://www.france24.com/en/", LinkPattern: "/en/"},
		{URL: "https://www.thehindu.com/news/international/", LinkPattern: "/news/international/"},
		{URL: "https://www.ndtv.com/world-news", LinkPattern: "/world-news/"},
	}
}

// LoadSources reads a JSON source list from path, falling back to the
// built-in list when path is empty or the file does not exist.
func LoadSources(path string) ([]models.Source, error) {
	if path == "" {
		return DefaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSources(), nil
		}
		return nil, fmt.Errorf("error reading sources file: %v", err)
	}

	var sources []models.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("error parsing sources file: %v", err)
	}

	if len(sources) == 0 {
		return DefaultSources(), nil
	}
	return sources, nil
}
