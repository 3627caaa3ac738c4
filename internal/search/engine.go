package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rcliao/flightfinder/internal/compare"
	"github.com/rcliao/flightfinder/internal/model"
	"github.com/rcliao/flightfinder/internal/skiplagged"
	"github.com/rcliao/flightfinder/internal/store"
)

// EngineOptions wires the search pipeline.
type EngineOptions struct {
	Executor ExecutorOptions
	// Routes backs skiplagged discovery; nil disables it.
	Routes store.RouteStore
	Logger *slog.Logger
}

// Engine runs the full pipeline: matrix, execution, ranking.
type Engine struct {
	builder  *Builder
	executor *Executor
	logger   *slog.Logger
}

// NewEngine builds an engine. A missing primary provider is a ConfigurationError.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Executor.Logger == nil {
		opts.Executor.Logger = opts.Logger
	}
	exec, err := NewExecutor(opts.Executor)
	if err != nil {
		return nil, err
	}
	var finder TargetFinder
	if opts.Routes != nil {
		finder = skiplagged.NewFinder(opts.Routes, opts.Logger)
	}
	return &Engine{
		builder:  NewBuilder(finder),
		executor: exec,
		logger:   opts.Logger,
	}, nil
}

// Result is the outcome of one search, shaped for the JSON interface.
type Result struct {
	Results  []model.Itinerary   `json:"results"`
	Failed   []model.SearchQuery `json:"failed"`
	Stale    []model.SearchQuery `json:"stale"`
	Queries  int                 `json:"queries"`
	Warnings []string            `json:"warnings"`

	// Cheapest is the cheapest unfiltered option when constraints removed everything.
	Cheapest *model.Itinerary `json:"cheapest_unfiltered,omitempty"`
}

// Plan returns the queries a search for r would execute.
func (e *Engine) Plan(ctx context.Context, r Request) ([]model.SearchQuery, error) {
	return e.builder.Build(ctx, r)
}

// Search plans, executes and ranks r. Partial failures are reported in the
// result, not returned as errors. The error is a *compare.NoResultsError when
// constraints leave nothing, or the context error when cancelled; the result
// is populated in both cases.
func (e *Engine) Search(ctx context.Context, r Request, c compare.Constraints) (*Result, error) {
	queries, err := e.builder.Build(ctx, r)
	if err != nil {
		return nil, err
	}
	e.logger.Info("search planned", "origins", r.Origins, "destination", r.Destination,
		"queries", len(queries), "skiplagged", r.IncludeSkiplagged, "flex_days", r.FlexDays)

	report, execErr := e.executor.Execute(ctx, queries)
	ranked, rankErr := compare.Rank(report.Itineraries, c, r.IsReturnTrip())

	res := &Result{
		Results:  ranked,
		Failed:   report.Failed,
		Stale:    report.Stale,
		Queries:  len(queries),
		Warnings: warnings(report, ranked),
	}
	e.logger.Info("search finished", "results", len(ranked), "failed", len(report.Failed),
		"stale", len(report.Stale), "cached", report.Cached, "fetched", report.Fetched)

	if execErr != nil {
		return res, execErr
	}
	var nerr *compare.NoResultsError
	if errors.As(rankErr, &nerr) {
		res.Cheapest = nerr.Cheapest
		res.Warnings = append(res.Warnings, "no results match the constraints; try loosening them")
	}
	return res, rankErr
}

func warnings(report *Report, ranked []model.Itinerary) []string {
	out := []string{}
	if n := len(report.Failed); n > 0 {
		out = append(out, fmt.Sprintf("%d of the planned queries could not be priced", n))
	}
	if n := len(report.Stale); n > 0 {
		out = append(out, fmt.Sprintf("%d queries were answered from an expired cache entry", n))
	}
	for _, it := range ranked {
		if it.IsSkiplagged() {
			out = append(out, model.SkiplaggedWarning)
			break
		}
	}
	return out
}
