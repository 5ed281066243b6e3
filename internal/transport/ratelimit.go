package transport

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"
)

// rateLimited wraps another Transport with a token-bucket limiter
// applied around EnqueueRequest, for providers whose free/trial tier
// enforces a requests-per-second ceiling the gateway should respect
// rather than let the upstream 429 every burst.
type rateLimited struct {
	Transport
	limiter *rate.Limiter
}

// RateLimited wraps inner so every EnqueueRequest call waits for a
// token from a limiter allowing rps requests per second, bursting up
// to burst at once. rps <= 0 returns inner unwrapped.
func RateLimited(inner Transport, rps float64, burst int) Transport {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{Transport: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (t *rateLimited) EnqueueRequest(ctx context.Context, fn func() (*http.Response, error)) (*http.Response, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.Transport.EnqueueRequest(ctx, fn)
}

var _ Transport = (*rateLimited)(nil)
