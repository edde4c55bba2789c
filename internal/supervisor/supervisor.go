// Package supervisor runs the long-lived parts of the server under a suture
// supervisor tree so a crashed consumer or listener is restarted with backoff.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// Config tunes restart behaviour. Zero values select the defaults.
type Config struct {
	FailureThreshold float64       // failures before backing off, default 5
	FailureDecay     float64       // seconds, default 30
	FailureBackoff   time.Duration // default 15s
	ShutdownTimeout  time.Duration // default 10s
}

func (c *Config) fill() {
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.FailureDecay == 0 {
		c.FailureDecay = 30
	}
	if c.FailureBackoff == 0 {
		c.FailureBackoff = 15 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Tree is a root supervisor with one child for messaging and one for the API.
type Tree struct {
	root      *suture.Supervisor
	messaging *suture.Supervisor
	api       *suture.Supervisor
}

// NewTree builds an empty tree that logs supervisor events to logger.
func NewTree(logger *slog.Logger, cfg Config) *Tree {
	cfg.fill()
	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = (&sutureslog.Handler{Logger: logger}).MustHook()

	t := &Tree{
		root:      suture.New("mediarec", rootSpec),
		messaging: suture.New("messaging", spec),
		api:       suture.New("api", spec),
	}
	t.root.Add(t.messaging)
	t.root.Add(t.api)
	return t
}

// AddMessagingService supervises svc under the messaging child.
func (t *Tree) AddMessagingService(svc suture.Service) suture.ServiceToken {
	return t.messaging.Add(svc)
}

// AddAPIService supervises svc under the api child.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// ServeBackground starts the tree. The channel receives exactly one value,
// the tree's exit error, and is never closed.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// Run serves the tree until ctx ends and every service has stopped or
// missed the shutdown timeout. Cancellation is not reported as an error.
func (t *Tree) Run(ctx context.Context) error {
	err := <-t.ServeBackground(ctx)
	if unstopped, _ := t.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			slog.Warn("service failed to stop", "service", svc.Name)
		}
	}
	if err != nil && ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree: %w", err)
	}
	return nil
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService adapts an HTTP server to suture.Service.
type HTTPService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPService returns a service that shuts server down gracefully when
// its context ends.
func NewHTTPService(server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string { return "http-server" }

// Runner is a message consumer that blocks in Run until ctx ends.
type Runner interface {
	Run(ctx context.Context) error
	Close() error
}

// ConsumerService builds a fresh Runner on every start, since a stopped
// router cannot be run again.
type ConsumerService struct {
	build func() (Runner, error)
}

// NewConsumerService returns a service running consumers made by build.
func NewConsumerService(build func() (Runner, error)) *ConsumerService {
	return &ConsumerService{build: build}
}

// Serve implements suture.Service.
func (c *ConsumerService) Serve(ctx context.Context) error {
	r, err := c.build()
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			slog.Warn("consumer close", "error", err)
		}
	}()
	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("consumer: %w", err)
	}
	return ctx.Err()
}

func (c *ConsumerService) String() string { return "session-consumer" }
