package agent

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/tailored-agentic-units/terminus/agent/providers"
	"github.com/tailored-agentic-units/terminus/core/config"
	"github.com/tailored-agentic-units/terminus/core/protocol"
	"github.com/tailored-agentic-units/terminus/core/response"
)

const defaultBackoff = 500 * time.Millisecond

type retrying struct {
	Agent
	maxRetries uint64
	backoff    time.Duration
}

// WithRetry wraps a so that transient transport failures (rate limits,
// server errors, timeouts) are retried with exponential backoff. Tool calls
// are never retried here; only the backend request itself.
func WithRetry(a Agent, cfg config.RetryConfig) Agent {
	backoff := cfg.Backoff.Std()
	if backoff <= 0 {
		backoff = defaultBackoff
	}
	return &retrying{
		Agent:      a,
		maxRetries: uint64(max(cfg.MaxRetries, 0)),
		backoff:    backoff,
	}
}

func (r *retrying) Generate(ctx context.Context, system string, history []protocol.Turn, catalog []protocol.Tool) (*response.Response, error) {
	b := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(r.backoff))

	var resp *response.Response
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		resp, err = r.Agent.Generate(ctx, system, history, catalog)
		if err != nil && providers.IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}
