// Package provider integrates the Genkit model runtime: plugin setup per
// configured provider, and the model client the turn engine calls.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"
	"golang.org/x/time/rate"

	"github.com/loreweaver/loreweaver/internal/chat"
	"github.com/loreweaver/loreweaver/internal/log"
)

// retry tuning for model calls.
const (
	maxRetries      = 3
	initialInterval = 500 * time.Millisecond
	maxInterval     = 10 * time.Second
)

// Init initializes Genkit with the plugin for the configured provider and
// returns the instance plus the fully qualified model name.
// Supported providers: gemini (default), openai, ollama.
func Init(ctx context.Context, providerName, modelName, embedderModel, ollamaHost string, logger log.Logger) (*genkit.Genkit, string, error) {
	if providerName == "" {
		providerName = "gemini"
	}

	var g *genkit.Genkit
	var qualified string

	switch providerName {
	case "ollama":
		ollamaPlugin := &ollama.Ollama{ServerAddress: ollamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, "", errors.New("initializing genkit with ollama provider")
		}
		// Ollama has no auto-discovery, models register explicitly.
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: modelName,
			Type: "chat",
		}, nil)
		if embedderModel != "" {
			ollamaPlugin.DefineEmbedder(g, ollamaHost, embedderModel, nil)
		}
		qualified = "ollama/" + modelName

	case "openai":
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, "", errors.New("initializing genkit with openai provider")
		}
		qualified = "openai/" + modelName

	case "gemini":
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, "", errors.New("initializing genkit with gemini provider")
		}
		qualified = "googleai/" + modelName

	default:
		return nil, "", fmt.Errorf("unknown provider %q (want gemini, openai, or ollama)", providerName)
	}

	logger.Info("initialized model provider", "provider", providerName, "model", modelName)
	return g, qualified, nil
}

// Client calls one resolved model. It implements chat.Model with rate
// limiting and retry on transient failures.
type Client struct {
	model       ai.Model
	limiter     *rate.Limiter
	logger      log.Logger
	temperature float64
	maxTokens   int
}

// ClientConfig carries the client's dependencies and generation settings.
type ClientConfig struct {
	Genkit    *genkit.Genkit
	ModelName string // fully qualified, e.g. "googleai/gemini-2.5-flash"

	// Limiter throttles outbound calls. Nil gets a 10 rps burst 30 default.
	Limiter *rate.Limiter

	Logger      log.Logger
	Temperature float64
	MaxTokens   int
}

// NewClient resolves the model and returns a ready client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Genkit == nil {
		return nil, errors.New("provider: genkit instance is required")
	}
	model := genkit.LookupModel(cfg.Genkit, cfg.ModelName)
	if model == nil {
		return nil, fmt.Errorf("provider: model %q not found", cfg.ModelName)
	}
	if cfg.Limiter == nil {
		cfg.Limiter = rate.NewLimiter(10, 30)
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &Client{
		model:       model,
		limiter:     cfg.Limiter,
		logger:      cfg.Logger,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Invoke performs a blocking model call.
func (c *Client) Invoke(ctx context.Context, msgs []chat.Message, tools []chat.ToolSpec) (*chat.Message, error) {
	return c.generate(ctx, msgs, tools, nil)
}

// Stream performs a streaming model call, forwarding text deltas to cb.
func (c *Client) Stream(ctx context.Context, msgs []chat.Message, tools []chat.ToolSpec, cb chat.StreamFunc) (*chat.Message, error) {
	var modelCB ai.ModelStreamCallback
	if cb != nil {
		modelCB = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return cb(ctx, chunk.Text())
		}
	}
	return c.generate(ctx, msgs, tools, modelCB)
}

func (c *Client) generate(ctx context.Context, msgs []chat.Message, tools []chat.ToolSpec, cb ai.ModelStreamCallback) (*chat.Message, error) {
	req := &ai.ModelRequest{
		Messages: toModelMessages(msgs),
		Tools:    toToolDefinitions(tools),
	}
	if c.temperature > 0 || c.maxTokens > 0 {
		req.Config = &ai.GenerationCommonConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxTokens,
		}
	}

	resp, err := c.generateWithRetry(ctx, req, cb)
	if err != nil {
		return nil, err
	}
	if resp.Message == nil {
		return nil, errors.New("model returned empty response")
	}
	return fromModelMessage(resp.Message), nil
}

// generateWithRetry rate-limits each attempt and backs off exponentially on
// transient failures.
func (c *Client) generateWithRetry(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var lastErr error
	delay := initialInterval
	start := time.Now()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		resp, err := c.model.Generate(ctx, req, cb)
		if err == nil {
			c.logger.DebugContext(ctx, "model call succeeded",
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return resp, nil
		}
		lastErr = err

		if !retryableError(err) {
			return nil, fmt.Errorf("model generate: %w", err)
		}
		if attempt == maxRetries {
			break
		}

		c.logger.WarnContext(ctx, "transient model failure, backing off",
			"attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxInterval {
			delay = maxInterval
		}
	}
	return nil, fmt.Errorf("model generate after %d attempts: %w", maxRetries+1, lastErr)
}

// Provider SDKs expose no typed errors for transient failures, so matching
// falls back to substrings.
var retryablePatterns = [][]string{
	{"rate limit", "quota exceeded", "429"},
	{"500", "502", "503", "504", "unavailable"},
	{"connection reset", "timeout", "temporary"},
}

func retryableError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, group := range retryablePatterns {
		for _, sub := range group {
			if strings.Contains(lower, sub) {
				return true
			}
		}
	}
	return false
}
