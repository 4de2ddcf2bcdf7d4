// Package scheduler enumerates candidate node identifiers and
// dispatches concurrent visits.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mathgene/genealogy-crawler/internal/genealogy"
	"github.com/mathgene/genealogy-crawler/internal/metrics"
)

// Config controls candidate enumeration and dispatch behavior.
type Config struct {
	// BaseURL is a printf template with a single %d verb for the node id.
	BaseURL string
	StartID int
	EndID   int
	// IDs, when non-empty, replaces the [StartID, EndID] range.
	IDs []int
	// Delay is the politeness delay between successive dispatches. It
	// bounds outbound request cadence, not in-flight concurrency; the
	// database pool's connection cap is the only concurrency brake.
	Delay time.Duration
	// ExpandDepth toggles neighbor expansion: 0 disables it, 1 refines
	// a visited node's directly-listed advisees. Deeper values are
	// rejected by config validation; refined neighbor pages are not
	// ingested, so a second hop would have nothing to act on.
	ExpandDepth int
}

// Report summarizes one crawl run.
type Report struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	Committed int64
	Abandoned int64
	Skipped   int64
}

// Scheduler drives the fetch → extract → ingest pipeline for each
// candidate identifier. Storage is the single source of truth for
// "visited": there is no in-memory frontier, so repeated runs resume
// for free and multiple instances can share one database.
type Scheduler struct {
	oracle    genealogy.Oracle
	fetcher   genealogy.Fetcher
	extractor genealogy.Extractor
	ingestor  genealogy.Ingestor
	limiter   *rate.Limiter
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Scheduler.
func New(
	oracle genealogy.Oracle,
	fetcher genealogy.Fetcher,
	extractor genealogy.Extractor,
	ingestor genealogy.Ingestor,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &Scheduler{
		oracle:    oracle,
		fetcher:   fetcher,
		extractor: extractor,
		ingestor:  ingestor,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		logger:    logger,
	}
}

// Run visits every candidate identifier not already stored and blocks
// until all dispatched visits complete. A failed visit is logged and
// counted; it never cancels the others.
func (s *Scheduler) Run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:   uuid.NewString(),
		Started: time.Now(),
	}
	s.logger.Info("crawl run starting",
		zap.String("run_id", report.RunID),
		zap.Int("candidates", len(s.candidates())),
	)

	var (
		wg        sync.WaitGroup
		committed atomic.Int64
		abandoned atomic.Int64
		skipped   atomic.Int64
	)

	for _, id := range s.candidates() {
		if ctx.Err() != nil {
			break
		}
		known, err := s.oracle.NodeExists(ctx, id)
		if err != nil {
			s.logger.Error("existence check failed", zap.Int("id", id), zap.Error(err))
			abandoned.Add(1)
			metrics.ObserveVisit(metrics.OutcomeAbandoned)
			continue
		}
		if known {
			skipped.Add(1)
			metrics.ObserveVisit(metrics.OutcomeSkipped)
			continue
		}
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			metrics.IncActiveVisits()
			defer metrics.DecActiveVisits()
			if err := s.visit(ctx, id); err != nil {
				s.logger.Warn("visit abandoned", zap.Int("id", id), zap.Error(err))
				abandoned.Add(1)
				metrics.ObserveVisit(metrics.OutcomeAbandoned)
				return
			}
			committed.Add(1)
			metrics.ObserveVisit(metrics.OutcomeCommitted)
		}(id)
	}

	wg.Wait()

	report.Finished = time.Now()
	report.Committed = committed.Load()
	report.Abandoned = abandoned.Load()
	report.Skipped = skipped.Load()
	s.logger.Info("crawl run finished",
		zap.String("run_id", report.RunID),
		zap.Int64("committed", report.Committed),
		zap.Int64("abandoned", report.Abandoned),
		zap.Int64("skipped", report.Skipped),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report, ctx.Err()
}

func (s *Scheduler) candidates() []int {
	if len(s.cfg.IDs) > 0 {
		return s.cfg.IDs
	}
	ids := make([]int, 0, s.cfg.EndID-s.cfg.StartID+1)
	for id := s.cfg.StartID; id <= s.cfg.EndID; id++ {
		ids = append(ids, id)
	}
	return ids
}

func (s *Scheduler) locator(id int) string {
	return fmt.Sprintf(s.cfg.BaseURL, id)
}

// visit runs the full pipeline for one identifier. Failures at any
// stage abandon this visit only; nothing has been written, so the
// identifier stays eligible for a later run.
func (s *Scheduler) visit(ctx context.Context, id int) error {
	doc, err := s.fetcher.Fetch(ctx, s.locator(id))
	if err != nil {
		return err
	}
	rec, err := s.extractor.Extract(doc)
	if err != nil {
		return err
	}
	s.expand(ctx, id, rec, s.cfg.ExpandDepth)
	if err := s.ingestor.Ingest(ctx, id, rec); err != nil {
		return err
	}
	metrics.ObserveIngest("visited")
	for _, st := range rec.Students {
		if st.ID != nil {
			metrics.ObserveIngest("neighbor")
		}
	}
	s.logger.Debug("node committed",
		zap.Int("id", id),
		zap.String("name", rec.Name),
		zap.Int("students", len(rec.Students)),
	)
	return nil
}

// expand refines neighbor stubs by fetching each linked advisee's own
// page. A stub is skipped only when both the neighbor node and the
// edge to it already exist; a node row alone may predate this
// advisor's edge. Refinement replaces the stub's name, school and year
// with the page's own values; failures keep the raw stub, whose
// table-row school and year then reach storage as-is.
func (s *Scheduler) expand(ctx context.Context, id int, rec *genealogy.ScrapeRecord, depth int) {
	if depth <= 0 {
		return
	}
	for i := range rec.Students {
		st := &rec.Students[i]
		if st.ID == nil {
			continue
		}
		nodeKnown, err := s.oracle.NodeExists(ctx, *st.ID)
		if err != nil {
			s.logger.Warn("neighbor existence check failed", zap.Int("id", *st.ID), zap.Error(err))
			continue
		}
		if nodeKnown {
			edgeKnown, err := s.oracle.EdgeExists(ctx, id, *st.ID)
			if err != nil {
				s.logger.Warn("edge existence check failed",
					zap.Int("advisor", id),
					zap.Int("advisee", *st.ID),
					zap.Error(err),
				)
				continue
			}
			if edgeKnown {
				continue
			}
		}
		doc, err := s.fetcher.Fetch(ctx, s.locator(*st.ID))
		if err != nil {
			s.logger.Warn("neighbor fetch failed, keeping stub", zap.Int("id", *st.ID), zap.Error(err))
			continue
		}
		srec, err := s.extractor.Extract(doc)
		if err != nil {
			s.logger.Warn("neighbor extract failed, keeping stub", zap.Int("id", *st.ID), zap.Error(err))
			continue
		}
		st.Name = srec.Name
		st.School = srec.School
		st.Year = srec.Year
	}
}
