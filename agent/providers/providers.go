// Package providers implements model backends on top of vendor SDKs and
// converts between terminus history and each vendor's message format.
package providers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"github.com/tailored-agentic-units/terminus/core/config"
)

// base carries the identity shared by every backend.
type base struct {
	id       string
	provider string
	model    string
	cfg      config.AgentConfig
}

func newBase(provider string, cfg *config.AgentConfig) base {
	return base{
		id:       uuid.Must(uuid.NewV7()).String(),
		provider: provider,
		model:    cfg.Model,
		cfg:      *cfg,
	}
}

func (b *base) ID() string       { return b.id }
func (b *base) Provider() string { return b.provider }
func (b *base) Model() string    { return b.model }

// withTimeout bounds a single backend request by the configured timeout.
func (b *base) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := b.cfg.Timeout.Std(); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// apiKey resolves the credential: explicit key, then the configured
// environment variable, then the provider's conventional variables.
func apiKey(cfg *config.AgentConfig, fallbacks ...string) string {
	if cfg.APIKey != "" {
		return cfg.APIKey
	}
	if cfg.APIKeyEnv != "" {
		if v := os.Getenv(cfg.APIKeyEnv); v != "" {
			return v
		}
	}
	for _, name := range fallbacks {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsTransient reports whether err is a transport failure worth retrying:
// rate limiting, a server-side error, or a network timeout. Cancellation
// and client errors are never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var oaiErr *openai.Error
	if errors.As(err, &oaiErr) {
		return retryableStatus(oaiErr.StatusCode)
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := any(e).(type) {
		case genai.APIError:
			return retryableStatus(v.Code)
		case *genai.APIError:
			return retryableStatus(v.Code)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
