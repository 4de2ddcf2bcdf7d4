package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mathgene/genealogy-crawler/internal/api"
	"github.com/mathgene/genealogy-crawler/internal/extract"
	"github.com/mathgene/genealogy-crawler/internal/fetcher"
	"github.com/mathgene/genealogy-crawler/internal/metrics"
	"github.com/mathgene/genealogy-crawler/internal/scheduler"
	"github.com/mathgene/genealogy-crawler/internal/store"
)

func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl over the configured identifier range",
		Long: `Enumerates the configured node identifiers, skips those already in
storage, and visits the rest concurrently with a politeness delay
between dispatches. Each visit ingests the node, its one-hop neighbors
and edges in a single transaction.`,

		RunE: runCrawl,
	}
}

func runCrawl(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	metrics.Init()

	st, err := store.New(ctx, store.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	policy := fetcher.NewJitterRetryPolicy(
		cfg.HTTP.MaxAttempts,
		time.Duration(cfg.HTTP.BackoffBaseSecs)*time.Second,
		time.Duration(cfg.HTTP.BackoffMaxSecs)*time.Second,
	)
	f := fetcher.New(fetcher.Config{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.HTTPTimeout(),
	}, policy, logger)

	sched := scheduler.New(st, f, extract.New(), st, scheduler.Config{
		BaseURL:     cfg.Crawler.BaseURL,
		StartID:     cfg.Crawler.StartID,
		EndID:       cfg.Crawler.EndID,
		IDs:         cfg.Crawler.IDs,
		Delay:       cfg.Delay(),
		ExpandDepth: cfg.Crawler.ExpandDepth,
	}, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(func() error { return st.Ping(ctx) }, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("ops server shutdown failed", zap.Error(err))
			}
		}()

		report, err := sched.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("run crawl: %w", err)
		}
		logger.Info("crawl command finished",
			zap.String("run_id", report.RunID),
			zap.Int64("committed", report.Committed),
			zap.Int64("abandoned", report.Abandoned),
			zap.Int64("skipped", report.Skipped),
		)
		return nil
	})
	return g.Wait()
}
