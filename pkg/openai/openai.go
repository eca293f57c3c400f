// Package openai implements a completion client for chat completion
// endpoints that follow the OpenAI API, such as Gemini's compatibility layer.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/PullRequestInc/go-gpt3"
	"github.com/igolaizola/gemchat/internal/ratelimit"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-2.5-flash"
)

var (
	ErrNoChoices = errors.New("openai: no choices in response")
	ErrEmpty     = errors.New("openai: empty response text")
)

type Config struct {
	Key       string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	Wait      time.Duration
}

type Client struct {
	client    gpt3.Client
	rateLimit ratelimit.Lock
	model     string
	maxTokens int
}

// New returns a new Client.
func New(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Minute
	}

	client := gpt3.NewClient(cfg.Key,
		gpt3.WithBaseURL(strings.TrimSuffix(baseURL, "/")),
		gpt3.WithTimeout(timeout),
	)
	return &Client{
		client:    client,
		rateLimit: ratelimit.New(cfg.Wait),
		model:     model,
		maxTokens: cfg.MaxTokens,
	}
}

// Generate sends the prompt as a single user message and returns the text of
// the first choice.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	unlock, err := c.rateLimit.Lock(ctx)
	if err != nil {
		return "", fmt.Errorf("openai: couldn't wait for rate limit: %w", err)
	}
	defer unlock()

	if tokens, err := Tokens(prompt); err == nil {
		log.Printf("openai: sending prompt (~%d tokens)", tokens)
	}

	completion, err := c.client.ChatCompletion(ctx, gpt3.ChatCompletionRequest{
		Model: c.model,
		Messages: []gpt3.ChatCompletionRequestMessage{
			{Role: "user", Content: prompt},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: couldn't generate completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}
	response := completion.Choices[0].Message.Content
	if strings.TrimSpace(response) == "" {
		return "", ErrEmpty
	}
	log.Printf("openai: request tokens %d", completion.Usage.TotalTokens)
	return response, nil
}
