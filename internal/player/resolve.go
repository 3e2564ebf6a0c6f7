package player

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultResolveTimeout = 5 * time.Second

// Resolver follows the redirects of a stream URL so players are handed the
// final location. 8tracks stream URLs usually point at a redirector that
// sends clients on to a CDN.
type Resolver struct {
	client  *http.Client
	timeout time.Duration
	logger  zerolog.Logger
}

// NewResolver creates a Resolver. A nil client uses a plain http.Client,
// which follows up to 10 redirects.
func NewResolver(client *http.Client, timeout time.Duration, logger zerolog.Logger) *Resolver {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &Resolver{
		client:  client,
		timeout: timeout,
		logger:  logger.With().Str("component", "resolver").Logger(),
	}
}

// Resolve returns the URL streamURL finally redirects to. Any failure
// returns streamURL unchanged and leaves it to the player to report. A nil
// Resolver returns streamURL as is.
func (r *Resolver) Resolve(ctx context.Context, streamURL string) string {
	if r == nil {
		return streamURL
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, streamURL, nil)
	if err != nil {
		r.logger.Debug().Err(err).Str("url", streamURL).Msg("Not resolving stream URL")
		return streamURL
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn().Err(err).Str("url", streamURL).Msg("Failed to resolve stream URL")
		return streamURL
	}
	_ = resp.Body.Close()

	final := resp.Request.URL.String()
	if final != streamURL {
		r.logger.Debug().Str("url", streamURL).Str("final", final).Msg("Stream URL redirected")
	}
	return final
}
