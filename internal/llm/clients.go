package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pavelanni/mediarec/internal/metrics"
	"github.com/pavelanni/mediarec/internal/model"
)

// DefaultSearchPhrase is used whenever the analysis endpoint cannot produce one.
const DefaultSearchPhrase = "English learning videos for beginners"

const maxPhraseRunes = 200

// AnalysisClient turns a context prompt into a short search phrase.
type AnalysisClient struct {
	gen  Generator
	name string
}

// NewAnalysisClient wraps gen. name labels logs and metrics.
func NewAnalysisClient(gen Generator, name string) *AnalysisClient {
	return &AnalysisClient{gen: gen, name: name}
}

// Analyze returns a search phrase. Transport failures, timeouts and empty
// answers yield DefaultSearchPhrase with a nil error; only unrecoverable
// failures are returned.
func (a *AnalysisClient) Analyze(ctx context.Context, p model.Prompt) (string, error) {
	text, err := a.gen.Generate(ctx, p)
	if err != nil {
		if errors.Is(err, ErrUnrecoverable) {
			metrics.AIRequests.WithLabelValues(a.name, "unrecoverable").Inc()
			return "", err
		}
		slog.Warn("analysis call failed, using default phrase", "endpoint", a.name, "error", err)
		metrics.AIRequests.WithLabelValues(a.name, "fallback").Inc()
		return DefaultSearchPhrase, nil
	}

	phrase := cleanPhrase(text)
	if phrase == "" {
		slog.Warn("analysis returned no phrase, using default", "endpoint", a.name)
		metrics.AIRequests.WithLabelValues(a.name, "fallback").Inc()
		return DefaultSearchPhrase, nil
	}
	metrics.AIRequests.WithLabelValues(a.name, "ok").Inc()
	return phrase, nil
}

// cleanPhrase keeps the first non-empty line without list markers or quotes.
func cleanPhrase(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*#> ")
		line = strings.Trim(line, "\"'`“”*")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if utf8.RuneCountInString(line) > maxPhraseRunes {
			line = string([]rune(line)[:maxPhraseRunes])
		}
		return line
	}
	return ""
}

// RetrievalClient fetches raw recommendation text from a search-capable endpoint.
type RetrievalClient struct {
	gen  Generator
	name string
}

// NewRetrievalClient wraps gen. name labels logs and metrics.
func NewRetrievalClient(gen Generator, name string) *RetrievalClient {
	return &RetrievalClient{gen: gen, name: name}
}

// Retrieve returns the raw response. On recoverable failures it returns an
// empty response, which parses to no candidates.
func (r *RetrievalClient) Retrieve(ctx context.Context, p model.Prompt) (model.RawResponse, error) {
	text, err := r.gen.Generate(ctx, p)
	if err != nil {
		if errors.Is(err, ErrUnrecoverable) {
			metrics.AIRequests.WithLabelValues(r.name, "unrecoverable").Inc()
			return "", err
		}
		slog.Warn("retrieval call failed, continuing without candidates", "endpoint", r.name, "error", err)
		metrics.AIRequests.WithLabelValues(r.name, "fallback").Inc()
		return "", nil
	}
	metrics.AIRequests.WithLabelValues(r.name, "ok").Inc()
	return model.RawResponse(text), nil
}
