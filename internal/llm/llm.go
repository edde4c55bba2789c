package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/pavelanni/mediarec/internal/metrics"
	"github.com/pavelanni/mediarec/internal/model"
)

// ErrUnrecoverable matches errors that retrying cannot fix, such as rejected credentials.
var ErrUnrecoverable = errors.New("unrecoverable AI endpoint error")

// errNoChoices is returned when a completion carries no choices.
var errNoChoices = errors.New("LLM returned no choices")

// UnrecoverableError reports a failure that should abort the pipeline run.
type UnrecoverableError struct {
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("%s endpoint: status %d: %v", e.Endpoint, e.StatusCode, e.Err)
}

func (e *UnrecoverableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnrecoverable) hold for every UnrecoverableError.
func (e *UnrecoverableError) Is(target error) bool { return target == ErrUnrecoverable }

// Generator turns a prompt into free text.
type Generator interface {
	Generate(ctx context.Context, p model.Prompt) (string, error)
}

// Client wraps an OpenAI-compatible chat completion endpoint with a circuit
// breaker, a rate limiter and a per-call timeout.
type Client struct {
	api     *openai.Client
	cfg     model.EndpointConfig
	breaker *gobreaker.CircuitBreaker[openai.ChatCompletionResponse]
	limiter *rate.Limiter
}

// New creates a client for one endpoint.
func New(cfg *model.EndpointConfig) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	return newClient(openai.NewClientWithConfig(config), cfg)
}

func newClient(api *openai.Client, cfg *model.EndpointConfig) *Client {
	c := &Client{api: api, cfg: *cfg}

	c.breaker = gobreaker.NewCircuitBreaker[openai.ChatCompletionResponse](gobreaker.Settings{
		Name:        "llm-" + cfg.Name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Rejected credentials are not an availability problem.
			return err == nil || isUnauthorized(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return c
}

// Generate sends the prompt as a single user message and returns the first choice.
func (c *Client) Generate(ctx context.Context, p model.Prompt) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (openai.ChatCompletionResponse, error) {
		return c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: c.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: p.Text},
			},
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
		})
	})
	metrics.AIRequestDuration.WithLabelValues(c.cfg.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		if status, ok := httpStatus(err); ok && isUnauthorizedStatus(status) {
			return "", &UnrecoverableError{Endpoint: c.cfg.Name, StatusCode: status, Err: err}
		}
		return "", fmt.Errorf("%s API call: %w", c.cfg.Name, err)
	}

	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "endpoint", c.cfg.Name, "prompt_kind", p.Kind, "length", len(raw))
	return raw, nil
}

// Ping checks that the endpoint answers a model listing.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%s endpoint: %w", c.cfg.Name, err)
	}
	return nil
}

func httpStatus(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func isUnauthorizedStatus(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusForbidden
}

func isUnauthorized(err error) bool {
	status, ok := httpStatus(err)
	return ok && isUnauthorizedStatus(status)
}

// NewGenerator selects the backend named in cfg.
func NewGenerator(cfg *model.EndpointConfig) (Generator, error) {
	switch cfg.Backend {
	case model.BackendOpenAI:
		return New(cfg), nil
	case model.BackendMock, "":
		return NewMock(), nil
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", cfg.Backend)
	}
}
