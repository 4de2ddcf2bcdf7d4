// Package fetcher retrieves node pages over HTTP, retrying transient
// failures with jittered backoff.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/mathgene/genealogy-crawler/internal/genealogy"
	"github.com/mathgene/genealogy-crawler/internal/metrics"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Fetcher implements genealogy.Fetcher using the Colly collector.
// Every visit re-fetches; documents are never cached.
type Fetcher struct {
	cfg    Config
	policy genealogy.RetryPolicy
	base   *colly.Collector
	logger *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, policy genealogy.RetryPolicy, logger *zap.Logger) *Fetcher {
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	c.SetRequestTimeout(timeout)

	return &Fetcher{
		cfg:    cfg,
		policy: policy,
		base:   c,
		logger: logger,
	}
}

// Fetch retrieves rawURL, retrying on any transport-level failure
// (timeout, connection error, non-success status). After the last
// attempt it fails with a FetchExhaustedError, which abandons the
// current visit but never the whole crawl.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (genealogy.Document, error) {
	attempts := f.policy.MaxAttempts()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			metrics.ObserveFetchRetry()
			if err := sleep(ctx, f.policy.Backoff(attempt-1)); err != nil {
				return genealogy.Document{}, err
			}
		}
		doc, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		f.logger.Warn("fetch attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return genealogy.Document{}, &genealogy.FetchExhaustedError{
		Locator:  rawURL,
		Attempts: attempts,
		Err:      lastErr,
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (genealogy.Document, error) {
	var (
		doc      genealogy.Document
		fetchErr error
	)
	collector := f.base.Clone()
	collector.OnResponse(func(r *colly.Response) {
		doc = genealogy.Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return genealogy.Document{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return genealogy.Document{}, fmt.Errorf("visit %s: %w", rawURL, err)
		}
		if fetchErr != nil {
			return genealogy.Document{}, fmt.Errorf("response %s: %w", rawURL, fetchErr)
		}
		return doc, nil
	}
}

// sleep waits for the backoff duration unless the context finishes first.
func sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
