package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sanketmandwal/TataVision/internal/metrics"
	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/internal/storage/models"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
	"github.com/Sanketmandwal/TataVision/pkg/utils"
)

const (
	NoResultsMessage = "No relevant feedback found for Tata vehicles. Please try rephrasing your query."
	NoResultsError   = "No results found"
)

var (
	ErrEmptyQuery  = errors.New("query cannot be empty")
	ErrInvalidTopK = errors.New("top_k out of range")
)

type Recorder interface {
	RecordAnalysis(ctx context.Context, record *models.AnalysisRecord) error
}

// Dependencies holds the long-lived capabilities an Engine uses. Recorder
// is optional.
type Dependencies struct {
	Generator       Generator
	Embedder        retrieval.Embedder
	VehicleStore    retrieval.Store
	CompetitorStore retrieval.Store
	Recorder        Recorder
}

type Options struct {
	DefaultTopK         int
	MaxTopK             int
	ParallelCompetitors bool
	MaxConcurrency      int
}

type Request struct {
	Query string
	TopK  int
}

type Engine struct {
	deps        Dependencies
	opts        Options
	interpreter *Interpreter
	reporter    *ReportGenerator
	retriever   *retrieval.Client
}

func NewEngine(deps Dependencies, opts Options) *Engine {
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 10
	}
	if opts.MaxTopK <= 0 {
		opts.MaxTopK = 100
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}

	return &Engine{
		deps:        deps,
		opts:        opts,
		interpreter: NewInterpreter(deps.Generator),
		reporter:    NewReportGenerator(deps.Generator),
		retriever:   retrieval.NewClient(deps.Embedder),
	}
}

func (e *Engine) Options() Options {
	return e.opts
}

// Analyze runs interpret, retrieve, aggregate and report for one query.
// The no-results case is a result with Success false, not an error.
func (e *Engine) Analyze(ctx context.Context, req Request) (*AnalysisResult, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	topK := req.TopK
	if topK == 0 {
		topK = e.opts.DefaultTopK
	}
	if topK < 1 || topK > e.opts.MaxTopK {
		return nil, ErrInvalidTopK
	}

	start := time.Now()
	id := uuid.New().String()

	logger.Info("Processing analysis",
		zap.String("analysis_id", id),
		zap.String("query", utils.Truncate(query, 200)),
		zap.Int("top_k", topK),
	)

	intent := e.interpreter.Interpret(ctx, query)

	vehicleMatches := e.retriever.Retrieve(ctx, e.deps.VehicleStore, retrieval.Request{
		SearchText: intent.SearchText,
		Filters:    intent.Filters,
		TopK:       topK,
	})

	if len(vehicleMatches) == 0 {
		logger.Info("No feedback found for vehicle",
			zap.String("analysis_id", id),
			zap.String("vehicle", intent.Vehicle),
		)
		result := noResults(id, query, intent)
		e.finish(ctx, result, start, "no_results")
		return result, nil
	}

	competitors := e.retrieveCompetitors(ctx, intent, topK)

	result := &AnalysisResult{
		ID:                  id,
		Success:             true,
		Query:               query,
		TataVehicle:         intent.Vehicle,
		CompetitorsAnalyzed: make([]string, 0, len(competitors)),
		TataFeedbackCount:   len(vehicleMatches),
		TataSentimentStats:  AggregateSentiment(vehicleMatches),
		TataSampleFeedback:  ExtractFeedback(firstN(vehicleMatches, vehicleSnippets), BrandLabel(intent.Vehicle)),
		CompetitorAnalysis:  make([]CompetitorAnalysis, 0, len(competitors)),
		FiltersApplied:      intent.Filters,
	}

	for _, c := range competitors {
		result.CompetitorsAnalyzed = append(result.CompetitorsAnalyzed, c.Name)
		result.CompetitorAnalysis = append(result.CompetitorAnalysis, CompetitorAnalysis{
			Name:           c.Name,
			FeedbackCount:  len(c.Matches),
			SentimentStats: AggregateSentiment(c.Matches),
			SampleFeedback: ExtractFeedback(firstN(c.Matches, competitorSnippets), c.Name),
		})
	}

	result.ComprehensiveAnalysis = e.reporter.Generate(ctx, query, intent.Vehicle, vehicleMatches, competitors)

	e.finish(ctx, result, start, "success")

	return result, nil
}

// retrieveCompetitors returns only competitors with at least one match, in
// the intent's order regardless of completion order.
func (e *Engine) retrieveCompetitors(ctx context.Context, intent QueryIntent, topK int) []CompetitorMatches {
	slots := make([][]retrieval.Match, len(intent.Competitors))

	fetch := func(i int) {
		slots[i] = e.retriever.Retrieve(ctx, e.deps.CompetitorStore, retrieval.Request{
			SearchText: intent.SearchText,
			Filters:    intent.Filters,
			TopK:       topK,
			Brand:      intent.Competitors[i],
		})
	}

	if e.opts.ParallelCompetitors && len(intent.Competitors) > 1 {
		var g errgroup.Group
		g.SetLimit(e.opts.MaxConcurrency)
		for i := range intent.Competitors {
			i := i
			g.Go(func() error {
				fetch(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range intent.Competitors {
			fetch(i)
		}
	}

	out := make([]CompetitorMatches, 0, len(slots))
	for i, matches := range slots {
		if len(matches) == 0 {
			logger.Debug("No feedback found for competitor", zap.String("competitor", intent.Competitors[i]))
			continue
		}
		out = append(out, CompetitorMatches{Name: intent.Competitors[i], Matches: matches})
	}

	return out
}

func noResults(id, query string, intent QueryIntent) *AnalysisResult {
	return &AnalysisResult{
		ID:                    id,
		Success:               false,
		Query:                 query,
		TataVehicle:           intent.Vehicle,
		CompetitorsAnalyzed:   []string{},
		TataSentimentStats:    SentimentStats{},
		TataSampleFeedback:    []FeedbackRecord{},
		CompetitorAnalysis:    []CompetitorAnalysis{},
		ComprehensiveAnalysis: NoResultsMessage,
		FiltersApplied:        intent.Filters,
		Error:                 NoResultsError,
	}
}

func (e *Engine) finish(ctx context.Context, result *AnalysisResult, start time.Time, status string) {
	elapsed := time.Since(start)
	metrics.AnalysisTotal.WithLabelValues(status).Inc()
	metrics.AnalysisDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	logger.Info("Analysis completed",
		zap.String("analysis_id", result.ID),
		zap.String("status", status),
		zap.String("vehicle", result.TataVehicle),
		zap.Int("feedback_count", result.TataFeedbackCount),
		zap.Strings("competitors", result.CompetitorsAnalyzed),
		zap.Duration("latency", elapsed),
	)

	if e.deps.Recorder == nil {
		return
	}

	record := &models.AnalysisRecord{
		ID:            result.ID,
		Query:         result.Query,
		Vehicle:       result.TataVehicle,
		Success:       result.Success,
		Competitors:   result.CompetitorsAnalyzed,
		FeedbackCount: result.TataFeedbackCount,
		PositivePct:   result.TataSentimentStats.PositivePct,
		NegativePct:   result.TataSentimentStats.NegativePct,
		Filters:       result.FiltersApplied,
		Error:         result.Error,
		LatencyMS:     elapsed.Milliseconds(),
		CreatedAt:     time.Now(),
	}

	if err := e.deps.Recorder.RecordAnalysis(ctx, record); err != nil {
		logger.Warn("Failed to record analysis", zap.String("analysis_id", result.ID), zap.Error(err))
	}
}
