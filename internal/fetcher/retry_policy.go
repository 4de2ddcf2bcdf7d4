package fetcher

import (
	"crypto/rand"
	"math/big"
	"time"
)

// JitterRetryPolicy implements genealogy.RetryPolicy with uniform
// jitter scaled by attempt number. Randomizing the backoff keeps many
// concurrent visits from retrying in lockstep against the source site.
type JitterRetryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// NewJitterRetryPolicy builds a policy. Zero arguments fall back to
// three attempts with seconds-scale backoff.
func NewJitterRetryPolicy(maxAttempts int, baseDelay, maxDelay time.Duration) *JitterRetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 2 * time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	return &JitterRetryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// MaxAttempts returns the total number of fetch attempts allowed.
func (p *JitterRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

// Backoff returns the wait duration before the next attempt. The
// result is uniformly distributed in [scaled/2, scaled) where scaled
// grows linearly with the attempt number, capped at maxDelay.
func (p *JitterRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	scaled := p.baseDelay * time.Duration(attempt)
	if scaled > p.maxDelay {
		scaled = p.maxDelay
	}
	half := scaled / 2
	return half + randomJitter(half)
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
