package retrieval

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Sanketmandwal/TataVision/internal/metrics"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

const (
	FieldContent   = "content"
	FieldSentiment = "sentiment_label"
	FieldLocation  = "location"
	FieldBrand     = "brand"

	countrySuffix = ", India"
)

type Match struct {
	ID       string
	Score    float32
	Metadata map[string]string
}

type Store interface {
	Name() string
	Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]Match, error)
	Count(ctx context.Context) (int64, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Request struct {
	SearchText string
	Filters    map[string]string
	TopK       int
	Brand      string
}

type Client struct {
	embedder Embedder
}

func NewClient(embedder Embedder) *Client {
	return &Client{embedder: embedder}
}

// Retrieve never returns an error; failures degrade to an empty result.
// A filtered search that fails or finds nothing is retried once unfiltered.
func (c *Client) Retrieve(ctx context.Context, store Store, req Request) []Match {
	filters := NormalizeFilters(req.Filters, req.Brand)

	vector, err := c.embedder.GenerateEmbedding(ctx, req.SearchText)
	if err != nil {
		logger.Error("Failed to embed search text",
			zap.String("store", store.Name()),
			zap.Error(err),
		)
		metrics.RetrievalTotal.WithLabelValues(store.Name(), "error").Inc()
		return []Match{}
	}

	var searchFilters map[string]string
	if len(filters) > 0 {
		searchFilters = filters
	}

	matches, err := store.Search(ctx, vector, req.TopK, searchFilters)
	if err != nil {
		logger.Warn("Vector search failed",
			zap.String("store", store.Name()),
			zap.Any("filters", searchFilters),
			zap.Error(err),
		)
	}

	if len(matches) > 0 {
		metrics.RetrievalTotal.WithLabelValues(store.Name(), "hit").Inc()
		metrics.FeedbackCount.WithLabelValues(store.Name()).Observe(float64(len(matches)))
		return matches
	}

	if searchFilters == nil {
		if err != nil {
			metrics.RetrievalTotal.WithLabelValues(store.Name(), "error").Inc()
		} else {
			metrics.RetrievalTotal.WithLabelValues(store.Name(), "empty").Inc()
		}
		return []Match{}
	}

	logger.Info("No results with filter, retrying without filter",
		zap.String("store", store.Name()),
		zap.Any("filters", searchFilters),
	)

	matches, err = store.Search(ctx, vector, req.TopK, nil)
	if err != nil {
		logger.Error("Unfiltered vector search failed",
			zap.String("store", store.Name()),
			zap.Error(err),
		)
		metrics.RetrievalTotal.WithLabelValues(store.Name(), "error").Inc()
		return []Match{}
	}

	if len(matches) == 0 {
		metrics.RetrievalTotal.WithLabelValues(store.Name(), "empty").Inc()
		return []Match{}
	}

	metrics.RetrievalTotal.WithLabelValues(store.Name(), "fallback").Inc()
	metrics.FeedbackCount.WithLabelValues(store.Name()).Observe(float64(len(matches)))

	return matches
}

// NormalizeFilters returns a fresh map; the input is never modified.
func NormalizeFilters(filters map[string]string, brand string) map[string]string {
	out := make(map[string]string, len(filters)+1)
	for k, v := range filters {
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}

	if location, ok := out[FieldLocation]; ok {
		out[FieldLocation] = NormalizeLocation(location)
	}

	if brand != "" {
		out[FieldBrand] = brand
	}

	return out
}

// NormalizeLocation title-cases a bare city name and appends the country,
// matching how locations are stored in the feedback metadata.
func NormalizeLocation(location string) string {
	if strings.Contains(location, countrySuffix) {
		return location
	}
	return cases.Title(language.Und).String(location) + countrySuffix
}
