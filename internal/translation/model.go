package translation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// Model translates one message. Implementations return the translated text
// or an error; they never return an empty translation with a nil error.
type Model interface {
	Translate(ctx context.Context, req Request) (string, error)
}

// ModelFunc adapts a function to Model.
type ModelFunc func(ctx context.Context, req Request) (string, error)

// Translate implements Model.
func (f ModelFunc) Translate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIModel calls a chat completion endpoint and expects a JSON object
// {"message": ..., "targetLanguage": ...} back.
type OpenAIModel struct {
	client *openai.Client
	model  string
}

// NewOpenAIModel builds a client. An empty BaseURL uses the public OpenAI API.
func NewOpenAIModel(cfg OpenAIConfig) *OpenAIModel {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAIModel{client: openai.NewClientWithConfig(oc), model: cfg.Model}
}

type structuredTranslation struct {
	Message        string `json:"message"`
	TargetLanguage string `json:"targetLanguage"`
}

// Translate implements Model.
func (m *OpenAIModel) Translate(ctx context.Context, req Request) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: m.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt()},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices", ErrModelOutput)
	}
	return parseStructured(resp.Choices[0].Message.Content)
}

func parseStructured(content string) (string, error) {
	content = strings.TrimSpace(content)
	// Some compatible servers wrap JSON mode output in a code fence.
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var out structuredTranslation
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelOutput, err)
	}
	if strings.TrimSpace(out.Message) == "" {
		return "", fmt.Errorf("%w: empty message", ErrModelOutput)
	}
	return out.Message, nil
}

// ResilienceConfig bounds how hard a ResilientModel tries.
type ResilienceConfig struct {
	MaxRetries uint64
	// RPS caps outbound calls per second across the process; 0 disables.
	RPS float64
	// InitialInterval is the first retry delay; zero uses 250ms.
	InitialInterval time.Duration
}

// ResilientModel wraps a Model with a rate limiter, a circuit breaker and
// bounded exponential retries.
type ResilientModel struct {
	next    Model
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cfg     ResilienceConfig
}

// NewResilientModel wraps next.
func NewResilientModel(next Model, cfg ResilienceConfig) *ResilientModel {
	limit := rate.Inf
	burst := 1
	if cfg.RPS > 0 {
		limit = rate.Limit(cfg.RPS)
		burst = max(1, int(cfg.RPS))
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 250 * time.Millisecond
	}
	return &ResilientModel{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "translation-model",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 5
			},
			// A caller going away says nothing about the model's health.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, context.Canceled)
			},
		}),
		cfg: cfg,
	}
}

var tracer = otel.Tracer("github.com/owenstack/chat/internal/translation")

// Translate implements Model.
func (m *ResilientModel) Translate(ctx context.Context, req Request) (string, error) {
	ctx, span := tracer.Start(ctx, "translation.model")
	defer span.End()
	span.SetAttributes(
		attribute.String("translation.source_language", req.SourceLanguage),
		attribute.String("translation.target_language", req.TargetLanguage),
	)

	var out string
	attempts := 0
	op := func() error {
		attempts++
		if err := m.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		start := time.Now()
		v, err := m.breaker.Execute(func() (interface{}, error) {
			return m.next.Translate(ctx, req)
		})
		modelLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				modelCalls.WithLabelValues("rejected").Inc()
				return backoff.Permanent(err)
			}
			modelCalls.WithLabelValues("error").Inc()
			if !retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		modelCalls.WithLabelValues("ok").Inc()
		out = v.(string)
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = m.cfg.InitialInterval
	eb.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, m.cfg.MaxRetries), ctx))
	span.SetAttributes(attribute.Int("translation.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model failed")
		return "", fmt.Errorf("%w after %d attempt(s): %w", ErrModelUnavailable, attempts, err)
	}
	return out, nil
}

// retryable reports whether a model error is worth another attempt.
// Malformed output and client errors other than 408/429 are final.
func retryable(err error) bool {
	if errors.Is(err, ErrModelOutput) || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 400 && code < 500:
		return false
	default:
		return true
	}
}
