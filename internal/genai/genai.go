// Package genai provides language-model operations using the OpenAI API.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Finish reasons reported by Generate besides the provider's own values.
const (
	FinishReasonCancelled = "cancelled"
)

// Default generation settings.
const (
	DefaultModel       = openai.ChatModelGPT4oMini
	DefaultTemperature = 0.4
	DefaultMaxTokens   = 800
)

var (
	// ErrNoChoicesReturned is returned when the provider answers with no choices.
	ErrNoChoicesReturned = errors.New("no choices returned")
	// ErrCancelled is returned by the string helpers when the call was cancelled.
	ErrCancelled = errors.New("generation cancelled")
)

// chatService defines minimal interface for chat completions.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error)
}

// completionsAdapter adapts the SDK's completion service to chatService.
type completionsAdapter struct {
	svc *openai.ChatCompletionService
}

func (a completionsAdapter) Create(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletion, error) {
	resp, err := a.svc.New(ctx, params)
	if err != nil {
		return openai.ChatCompletion{}, err
	}
	return *resp, nil
}

// ClientInterface is what the rest of DocFlow needs from a language model.
type ClientInterface interface {
	Generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (Result, error)
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
}

// Result is one completion and why it stopped.
type Result struct {
	Text         string
	FinishReason string
}

// Cancelled reports whether the call was cut short by its context.
func (r Result) Cancelled() bool {
	return r.FinishReason == FinishReasonCancelled
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat        chatService
	model       string
	temperature float64
	maxTokens   int64
}

var _ ClientInterface = (*Client)(nil)

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int64
}

// Option configures the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) Option {
	return func(o *Opts) { o.Temperature = t }
}

// WithMaxTokens caps completion length.
func WithMaxTokens(n int64) Option {
	return func(o *Opts) { o.MaxTokens = n }
}

// NewClient creates a client. The API key comes from options or OPENAI_API_KEY.
func NewClient(opts ...Option) (*Client, error) {
	cfg := Opts{
		Model:       DefaultModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("GenAI client created", "model", cfg.Model, "baseURL_set", cfg.BaseURL != "")

	return &Client{
		chat:        completionsAdapter{svc: &cli.Chat.Completions},
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Generate runs one chat completion. A cancelled context yields a Result with
// FinishReason "cancelled" and a nil error.
func (c *Client) Generate(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (Result, error) {
	if ctx.Err() != nil {
		slog.Debug("GenAI Generate skipped, context already done", "error", ctx.Err())
		return Result{FinishReason: FinishReasonCancelled}, nil
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if c.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(c.maxTokens)
	}

	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			slog.Debug("GenAI Generate cancelled", "error", err)
			return Result{FinishReason: FinishReasonCancelled}, nil
		}
		slog.Error("GenAI Generate failed", "error", err, "model", c.model)
		return Result{}, err
	}
	if len(resp.Choices) == 0 {
		return Result{}, ErrNoChoicesReturned
	}

	choice := resp.Choices[0]
	slog.Debug("GenAI Generate succeeded", "model", c.model, "finishReason", choice.FinishReason, "length", len(choice.Message.Content))
	return Result{Text: choice.Message.Content, FinishReason: string(choice.FinishReason)}, nil
}

// GenerateWithMessages returns the completion text, or ErrCancelled when cancelled.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	res, err := c.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if res.Cancelled() {
		return "", ErrCancelled
	}
	return res.Text, nil
}

// GeneratePrompt generates a response based on the provided system and user prompts.
func (c *Client) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
}
