package driver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/aristath/griptape/internal/artifact"
)

// RetryConfig configures exponential backoff.
type RetryConfig struct {
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	MaxElapsedTime      time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     100 * time.Millisecond,
		MaxInterval:         10 * time.Second,
		MaxElapsedTime:      2 * time.Minute,
		Multiplier:          2.0,
		RandomizationFactor: 0.5,
	}
}

func (c RetryConfig) policy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.MaxElapsedTime = c.MaxElapsedTime
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = c.RandomizationFactor
	return backoff.WithContext(b, ctx)
}

// BreakerRegistry hands out one circuit breaker per driver name.
type BreakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewBreakerRegistry creates a registry. A nil logger uses slog.Default.
func NewBreakerRegistry(logger *slog.Logger) *BreakerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerRegistry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		logger:   logger,
	}
}

// Get returns the breaker for name, creating it on first use.
func (r *BreakerRegistry) Get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("circuit breaker state change", "driver", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Cancellation and bad requests say nothing about driver health.
			return err == nil ||
				errors.Is(err, context.Canceled) ||
				errors.Is(err, context.DeadlineExceeded) ||
				IsPermanent(err)
		},
	})
	r.breakers[name] = cb
	return cb
}

// withRetry runs fn through cb with exponential backoff. Open breakers,
// cancellation and permanent errors stop the retry loop.
func withRetry[T any](ctx context.Context, cb *gobreaker.CircuitBreaker, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var out T

	operation := func() error {
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return fn()
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil || IsPermanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		out = result.(T)
		return nil
	}

	err := backoff.Retry(operation, cfg.policy(ctx))
	return out, err
}

// ResilientPromptDriver retries a prompt driver behind a circuit breaker.
type ResilientPromptDriver struct {
	next    PromptDriver
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// NewResilientPromptDriver wraps next. name selects the breaker in reg.
func NewResilientPromptDriver(next PromptDriver, name string, reg *BreakerRegistry, cfg RetryConfig) *ResilientPromptDriver {
	return &ResilientPromptDriver{next: next, breaker: reg.Get(name), retry: cfg}
}

func (d *ResilientPromptDriver) Model() string { return d.next.Model() }

func (d *ResilientPromptDriver) Run(ctx context.Context, stack PromptStack) (*artifact.TextArtifact, error) {
	return withRetry(ctx, d.breaker, d.retry, func() (*artifact.TextArtifact, error) {
		return d.next.Run(ctx, stack)
	})
}

// Stream streams through the wrapped driver when it supports streaming.
// Once a chunk has been delivered a failure is no longer retried.
func (d *ResilientPromptDriver) Stream(ctx context.Context, stack PromptStack, onChunk func(string)) (*artifact.TextArtifact, error) {
	sd, ok := d.next.(StreamingPromptDriver)
	if !ok {
		out, err := d.Run(ctx, stack)
		if err == nil {
			onChunk(out.Value)
		}
		return out, err
	}

	var delivered bool
	return withRetry(ctx, d.breaker, d.retry, func() (*artifact.TextArtifact, error) {
		out, err := sd.Stream(ctx, stack, func(chunk string) {
			delivered = true
			onChunk(chunk)
		})
		if err != nil && delivered {
			return nil, Permanent(err)
		}
		return out, err
	})
}

// ResilientEmbeddingDriver retries an embedding driver behind a circuit breaker.
type ResilientEmbeddingDriver struct {
	next    EmbeddingDriver
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// NewResilientEmbeddingDriver wraps next. name selects the breaker in reg.
func NewResilientEmbeddingDriver(next EmbeddingDriver, name string, reg *BreakerRegistry, cfg RetryConfig) *ResilientEmbeddingDriver {
	return &ResilientEmbeddingDriver{next: next, breaker: reg.Get(name), retry: cfg}
}

func (d *ResilientEmbeddingDriver) Model() string { return d.next.Model() }

func (d *ResilientEmbeddingDriver) EmbedChunk(ctx context.Context, text string) ([]float64, error) {
	return withRetry(ctx, d.breaker, d.retry, func() ([]float64, error) {
		return d.next.EmbedChunk(ctx, text)
	})
}

// ResilientImageGenerationDriver retries an image generation driver behind a
// circuit breaker.
type ResilientImageGenerationDriver struct {
	next    ImageGenerationDriver
	breaker *gobreaker.CircuitBreaker
	retry   RetryConfig
}

// NewResilientImageGenerationDriver wraps next. name selects the breaker in reg.
func NewResilientImageGenerationDriver(next ImageGenerationDriver, name string, reg *BreakerRegistry, cfg RetryConfig) *ResilientImageGenerationDriver {
	return &ResilientImageGenerationDriver{next: next, breaker: reg.Get(name), retry: cfg}
}

func (d *ResilientImageGenerationDriver) Model() string { return d.next.Model() }

func (d *ResilientImageGenerationDriver) GenerateImage(ctx context.Context, prompts, negativePrompts []string) (*artifact.BlobArtifact, error) {
	return withRetry(ctx, d.breaker, d.retry, func() (*artifact.BlobArtifact, error) {
		return d.next.GenerateImage(ctx, prompts, negativePrompts)
	})
}
