// Package embedding batches texts across provider calls with retry.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"go.uber.org/zap"

	"github.com/calder-labs/ragserve/internal/domain"
	"github.com/calder-labs/ragserve/internal/metrics"
)

// provider is the consumer interface for the upstream embedder (ISP).
type provider interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// RetrySettings controls the per-batch retry policy.
type RetrySettings struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterPct   int
}

// Config holds batching client settings.
type Config struct {
	Model        string
	MaxBatch     int
	BatchTimeout time.Duration
	Retry        RetrySettings
}

// Client splits large inputs into provider-sized batches, runs them
// sequentially and retries transient failures with exponential backoff.
// A call either returns one vector per input or fails as a whole.
type Client struct {
	provider provider
	cfg      Config
	policy   retrypolicy.RetryPolicy[domain.BatchEmbeddingResult]
	logger   *zap.Logger
}

// NewClient creates a batching embedding client.
func NewClient(p provider, cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 100
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}

	builder := retrypolicy.Builder[domain.BatchEmbeddingResult]().
		HandleIf(func(_ domain.BatchEmbeddingResult, err error) bool {
			return errors.Is(err, domain.ErrEmbeddingUnavailable)
		}).
		WithBackoff(cfg.Retry.BaseDelay, cfg.Retry.MaxDelay).
		WithMaxRetries(cfg.Retry.MaxAttempts - 1).
		ReturnLastFailure().
		OnRetry(func(e failsafe.ExecutionEvent[domain.BatchEmbeddingResult]) {
			metrics.EmbeddingRetriesTotal.WithLabelValues(cfg.Model).Inc()
			logger.Warn("Retrying embedding batch",
				zap.Int("attempt", e.Attempts()),
				zap.Error(e.LastError()))
		})
	if cfg.Retry.JitterPct > 0 {
		builder = builder.WithJitterFactor(float32(cfg.Retry.JitterPct) / 100)
	}

	return &Client{
		provider: p,
		cfg:      cfg,
		policy:   builder.Build(),
		logger:   logger,
	}
}

// BatchEmbed implements domain.BatchEmbedder. Results keep input order:
// output i is the vector for texts[i] regardless of batch boundaries.
func (c *Client) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if len(texts) == 0 {
		return domain.BatchEmbeddingResult{Embeddings: [][]float32{}}, nil
	}

	result := domain.BatchEmbeddingResult{
		Embeddings: make([][]float32, 0, len(texts)),
	}

	for i := 0; i*c.cfg.MaxBatch < len(texts); i++ {
		lo := i * c.cfg.MaxBatch
		hi := min(lo+c.cfg.MaxBatch, len(texts))

		batch, err := c.embedBatch(ctx, texts[lo:hi])
		if err != nil {
			return domain.BatchEmbeddingResult{}, &domain.BatchError{BatchIndex: i, Err: err}
		}

		result.Embeddings = append(result.Embeddings, batch.Embeddings...)
		result.PromptTokens += batch.PromptTokens
		result.TotalTokens += batch.TotalTokens
	}

	return result, nil
}

func (c *Client) embedBatch(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	result, err := failsafe.Get(func() (domain.BatchEmbeddingResult, error) {
		bctx := ctx
		if c.cfg.BatchTimeout > 0 {
			var cancel context.CancelFunc
			bctx, cancel = context.WithTimeout(ctx, c.cfg.BatchTimeout)
			defer cancel()
		}
		return c.provider.BatchEmbed(bctx, texts)
	}, c.policy)
	if err != nil {
		return domain.BatchEmbeddingResult{}, classify(err)
	}
	return result, nil
}

// classify normalizes non-domain errors (timeouts, cancellation) so callers
// only ever see the embedding error taxonomy.
func classify(err error) error {
	if errors.Is(err, domain.ErrEmbeddingRejected) || errors.Is(err, domain.ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrEmbeddingUnavailable, err.Error())
}
