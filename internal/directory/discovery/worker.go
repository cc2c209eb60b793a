// Package discovery enriches undiscovered companies with their web
// presence: one company per cycle, searched through the retry policy and
// written back atomically.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	e "github.com/gartstein/companydir/internal/directory/errors"
	"github.com/gartstein/companydir/internal/directory/metrics"
	"github.com/gartstein/companydir/internal/directory/models"
	"github.com/gartstein/companydir/internal/directory/search"
	"go.uber.org/zap"
)

// Outcome is the result of one discovery cycle.
type Outcome int

const (
	OutcomeIdle Outcome = iota
	OutcomeDiscovered
	OutcomeDeleted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeDiscovered:
		return "discovered"
	case OutcomeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Directory is the part of the directory service the worker needs.
type Directory interface {
	NextUndiscoveredCompany(ctx context.Context) (*models.CompanyView, error)
	RecordDiscovery(ctx context.Context, sid models.SID, websites []models.Website, careerPage string) error
	DeleteCompany(ctx context.Context, sid models.SID) error
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

var careerKeywords = []string{"career", "jobs", "job", "employment", "hiring"}

type Worker struct {
	directory Directory
	searcher  Searcher
	retry     RetryPolicy
	keyword   string
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Option func(*Worker)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(w *Worker) { w.retry = p }
}

func WithKeyword(keyword string) Option {
	return func(w *Worker) { w.keyword = keyword }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

func NewWorker(directory Directory, searcher Searcher, logger *zap.Logger, opts ...Option) *Worker {
	w := &Worker{
		directory: directory,
		searcher:  searcher,
		retry:     DefaultRetryPolicy(),
		keyword:   DefaultKeyword,
		logger:    logger.Named("discovery_worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunCycle discovers at most one company. A nil error with OutcomeIdle
// means there was nothing to do. On error the company is left untouched.
func (w *Worker) RunCycle(ctx context.Context) (Outcome, error) {
	outcome, err := w.runCycle(ctx)
	if err != nil {
		w.metrics.IncrementCycle("failed")
	} else {
		w.metrics.IncrementCycle(outcome.String())
	}
	return outcome, err
}

func (w *Worker) runCycle(ctx context.Context) (Outcome, error) {
	company, err := w.directory.NextUndiscoveredCompany(ctx)
	if errors.Is(err, e.ErrNotFound) {
		return OutcomeIdle, nil
	}
	if err != nil {
		return OutcomeIdle, fmt.Errorf("failed to select undiscovered company: %w", err)
	}

	logger := w.logger.With(zap.Int64("sid", int64(company.SID)))
	query := BuildQuery(company.PrimaryAlias(), w.keyword)

	var results []search.Result
	err = w.retry.Do(ctx, func(ctx context.Context) error {
		start := time.Now()
		res, err := w.searcher.Search(ctx, query)
		w.metrics.ObserveSearch(searchResult(err), time.Since(start))
		if err != nil {
			logger.Warn("Search attempt failed", zap.String("query", query), zap.Error(err))
			return err
		}
		results = res
		return nil
	})

	switch {
	case ctx.Err() != nil:
		return OutcomeIdle, ctx.Err()
	case errors.Is(err, search.ErrInvalidResponse):
		return w.discard(ctx, logger.With(zap.Error(err)), company.SID, reasonInvalidResponse)
	case err != nil:
		return OutcomeIdle, fmt.Errorf("search for company %d: %w", company.SID, err)
	}

	websites, careerPage := collect(results)
	if len(websites) == 0 {
		return w.discard(ctx, logger.With(zap.Int("results", len(results))), company.SID, reasonNoResults)
	}

	if err := w.directory.RecordDiscovery(ctx, company.SID, websites, careerPage); err != nil {
		return OutcomeIdle, fmt.Errorf("failed to record discovery for company %d: %w", company.SID, err)
	}

	logger.Info("Company discovered",
		zap.String("query", query),
		zap.Int("websites", len(websites)),
		zap.String("career_page", careerPage),
	)
	return OutcomeDiscovered, nil
}

// Reasons a company is deleted by a discovery cycle.
const (
	reasonInvalidResponse = "invalid_response"
	reasonNoResults       = "no_results"
)

var discardMessages = map[string]string{
	reasonInvalidResponse: "Company deleted: search response unusable",
	reasonNoResults:       "Company deleted: search returned no usable results",
}

// discard deletes a company whose search can never succeed.
func (w *Worker) discard(ctx context.Context, logger *zap.Logger, sid models.SID, reason string) (Outcome, error) {
	if err := w.directory.DeleteCompany(ctx, sid); err != nil && !errors.Is(err, e.ErrNotFound) {
		return OutcomeIdle, fmt.Errorf("failed to delete company %d (%s): %w", sid, reason, err)
	}
	logger.Info(discardMessages[reason], zap.String("reason", reason))
	return OutcomeDeleted, nil
}

// collect dedupes result links into websites and picks the career page.
func collect(results []search.Result) ([]models.Website, string) {
	seen := make(map[string]struct{}, len(results))
	var websites []models.Website
	careerPage := ""
	for _, r := range results {
		link := strings.TrimSpace(r.Link)
		if link == "" {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		websites = append(websites, models.Website{URL: link})
		if careerPage == "" && isCareerLink(link) {
			careerPage = link
		}
	}
	if careerPage == "" && len(websites) > 0 {
		careerPage = websites[0].URL
	}
	return websites, careerPage
}

func isCareerLink(link string) bool {
	lower := strings.ToLower(link)
	for _, kw := range careerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func searchResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, search.ErrInvalidResponse):
		return "terminal"
	default:
		return "transient"
	}
}
