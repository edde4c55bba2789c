package model

import "time"

// Backend selects the implementation behind an AI endpoint.
type Backend string

const (
	BackendOpenAI Backend = "openai"
	BackendMock   Backend = "mock"
)

// EndpointConfig describes one OpenAI-compatible AI endpoint.
type EndpointConfig struct {
	Name          string // used in logs, metrics and breaker names
	Backend       Backend
	BaseURL       string
	APIKey        string
	Model         string
	Timeout       time.Duration // per call
	MaxTokens     int
	Temperature   float32
	RatePerSecond float64 // 0 disables throttling
	Burst         int
}

// MessagingConfig holds transport and topic settings.
type MessagingConfig struct {
	Transport     string // "gochannel" or "nats"
	NATSURL       string
	InboundTopic  string
	OutboundTopic string
	QueueGroup    string
	Subscribers   int
	StreamName    string // JetStream stream holding both topics
	AckWait       time.Duration
	MaxRetries    int // in-process retries before a message is nacked
	RetryInterval time.Duration
}

// PipelineConfig holds recommendation pipeline parameters.
type PipelineConfig struct {
	Workers             int // concurrent runs across both trigger paths
	MaxIncorrectDetails int
	RealTimeCount       int // items requested per session-triggered run
	OnDemandCount       int // items requested per user-requested run
}

// Config is built once at process start and passed by pointer.
type Config struct {
	Analysis  EndpointConfig
	Retrieval EndpointConfig
	Messaging MessagingConfig
	Pipeline  PipelineConfig
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		Analysis: EndpointConfig{
			Name:        "analysis",
			Backend:     BackendMock,
			Timeout:     20 * time.Second,
			MaxTokens:   256,
			Temperature: 0.3,
		},
		Retrieval: EndpointConfig{
			Name:        "retrieval",
			Backend:     BackendMock,
			Timeout:     60 * time.Second,
			MaxTokens:   3000,
			Temperature: 0.3,
		},
		Messaging: MessagingConfig{
			Transport:     "gochannel",
			InboundTopic:  "learning.session.completed",
			OutboundTopic: "recommendation.created",
			QueueGroup:    "media-recommender",
			Subscribers:   3,
			StreamName:    "MEDIAREC",
			AckWait:       2 * time.Minute,
			MaxRetries:    2,
			RetryInterval: time.Second,
		},
		Pipeline: PipelineConfig{
			Workers:             3,
			MaxIncorrectDetails: 5,
			RealTimeCount:       2,
			OnDemandCount:       8,
		},
	}
}
