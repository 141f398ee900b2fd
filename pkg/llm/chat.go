package llm

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// FallbackReply is returned whenever the upstream model errors. The
// chat surface always produces some reply; outages only show in logs.
const FallbackReply = "I'm sorry, I encountered an error while generating a response."

const promptTemplate = `You are a helpful assistant that answers questions about news articles.
Based on the following contexts from news articles, please answer the user's question.
If you don't know the answer or if the contexts don't provide enough information, say so.

%s

User Question: %s

Answer:`

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	APIKey      string
	Model       string
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// ChatEngine is an engine that uses an LLM to generate chat responses.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewChatEngine creates a ChatEngine backed by the Gemini API.
func NewChatEngine(ctx context.Context, config ChatConfig) (*ChatEngine, error) {
	applyChatDefaults(&config)

	model, err := googleai.New(ctx,
		googleai.WithAPIKey(config.APIKey),
		googleai.WithDefaultModel(config.Model))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// NewChatEngineWithModel wires an explicit model. Used by tests.
func NewChatEngineWithModel(model llms.Model, config ChatConfig) *ChatEngine {
	applyChatDefaults(&config)
	return &ChatEngine{
		config: config,
		llm:    model,
	}
}

func applyChatDefaults(config *ChatConfig) {
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}
	if config.Temperature == 0 {
		config.Temperature = 0.2
	}
	if config.TopP == 0 {
		config.TopP = 0.95
	}
	if config.TopK == 0 {
		config.TopK = 40
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 1024
	}
}

// Generate produces a single-shot reply for the query given retrieved
// context passages.
func (ce *ChatEngine) Generate(ctx context.Context, query string, contexts []string) string {
	prompt := ce.buildPrompt(query, contexts)

	response, err := ce.llm.GenerateContent(ctx,
		[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
		ce.callOptions()...)
	if err != nil {
		log.Printf("[llm] generation failed: %v", err)
		return FallbackReply
	}
	if len(response.Choices) == 0 || response.Choices[0].Content == "" {
		log.Printf("[llm] empty response from model")
		return FallbackReply
	}

	return response.Choices[0].Content
}

// GenerateStream produces the reply as a channel of text fragments.
// The channel is finite and closes when the model finishes or errors;
// errors surface as a trailing fallback fragment.
func (ce *ChatEngine) GenerateStream(ctx context.Context, query string, contexts []string) <-chan string {
	prompt := ce.buildPrompt(query, contexts)
	fragments := make(chan string)

	go func() {
		defer close(fragments)

		options := append(ce.callOptions(),
			llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
				if len(chunk) > 0 {
					fragments <- string(chunk)
				}
				return nil
			}))

		_, err := ce.llm.GenerateContent(ctx,
			[]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeHuman, prompt)},
			options...)
		if err != nil {
			log.Printf("[llm] streaming generation failed: %v", err)
			fragments <- FallbackReply
		}
	}()

	return fragments
}

func (ce *ChatEngine) callOptions() []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(ce.config.Temperature),
		llms.WithTopP(ce.config.TopP),
		llms.WithTopK(ce.config.TopK),
		llms.WithMaxTokens(ce.config.MaxTokens),
	}
}

func (ce *ChatEngine) buildPrompt(query string, contexts []string) string {
	numbered := make([]string, 0, len(contexts))
	for i, ctx := range contexts {
		numbered = append(numbered, fmt.Sprintf("[Context %d]: %s", i+1, ctx))
	}
	return fmt.Sprintf(promptTemplate, strings.Join(numbered, "\n\n"), query)
}
