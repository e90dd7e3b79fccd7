package analysis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sanketmandwal/TataVision/internal/llm"
	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/internal/storage/models"
)

type fakeGenerator struct {
	mu sync.Mutex

	interpretOutput string
	interpretErr    error
	reportOutput    string
	reportErr       error

	requests []llm.GenerateRequest
}

func (f *fakeGenerator) Generate(ctx context.Context, req llm.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	switch req.Purpose {
	case "interpret":
		return f.interpretOutput, f.interpretErr
	case "report":
		return f.reportOutput, f.reportErr
	}
	return "", errors.New("unexpected purpose " + req.Purpose)
}

func (f *fakeGenerator) calls(purpose string) []llm.GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []llm.GenerateRequest
	for _, r := range f.requests {
		if r.Purpose == purpose {
			out = append(out, r)
		}
	}
	return out
}

type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.5, 0.5}, nil
}

type storeCall struct {
	topK    int
	filters map[string]string
}

// fakeStore answers by brand filter; unfiltered searches get the "" entry.
type fakeStore struct {
	mu      sync.Mutex
	name    string
	byBrand map[string][]retrieval.Match
	delays  map[string]time.Duration
	calls   []storeCall
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]retrieval.Match, error) {
	brand := filters[retrieval.FieldBrand]

	if d := f.delays[brand]; d > 0 {
		time.Sleep(d)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	copied := make(map[string]string, len(filters))
	for k, v := range filters {
		copied[k] = v
	}
	if filters == nil {
		copied = nil
	}
	f.calls = append(f.calls, storeCall{topK: topK, filters: copied})

	return f.byBrand[brand], nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*models.AnalysisRecord
	err     error
}

func (f *fakeRecorder) RecordAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return f.err
}

func labeled(labels ...string) []retrieval.Match {
	out := make([]retrieval.Match, len(labels))
	for i, l := range labels {
		out[i] = retrieval.Match{
			ID:    string(rune('a' + i)),
			Score: 0.8,
			Metadata: map[string]string{
				retrieval.FieldContent:   "feedback " + string(rune('a'+i)),
				retrieval.FieldSentiment: l,
				retrieval.FieldLocation:  "Pune, India",
			},
		}
	}
	return out
}
