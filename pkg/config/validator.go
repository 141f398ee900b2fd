package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "server.port",
			Message: "port must be between 1 and 65535",
		})
	}

	// Validate Database config
	if c.Database.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "PostgreSQL connection string is required",
		})
	} else if _, err := url.Parse(c.Database.URL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "database.url",
			Message: "invalid database URL",
		})
	}

	if c.Database.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Database.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "database.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Embedding config
	if c.Embedding.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.api_key",
			Message: "Jina API key is required",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate LLM config
	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "Gemini API key is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Session config
	if c.Session.TTLSeconds < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.ttl_seconds",
			Message: "ttl_seconds must be positive",
		})
	}

	if c.Session.MaxMessages < 1 {
		errors = append(errors, ValidationError{
			Field:   "session.max_messages",
			Message: "max_messages must be positive",
		})
	}

	// Validate News config
	if c.News.MaxArticlesPerSource < 1 {
		errors = append(errors, ValidationError{
			Field:   "news.max_articles_per_source",
			Message: "max_articles_per_source must be positive",
		})
	}

	if c.News.RequestDelaySeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "news.request_delay_seconds",
			Message: "request_delay_seconds must be positive",
		})
	}

	// Validate Chat config
	if c.Chat.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "chat.top_k",
			Message: "top_k must be positive",
		})
	}

	return errors
}
