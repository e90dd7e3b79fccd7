package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanketmandwal/TataVision/internal/analysis"
	"github.com/Sanketmandwal/TataVision/internal/middleware/validation"
	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/internal/storage/models"
)

type fakeAnalyzer struct {
	result *analysis.AnalysisResult
	err    error

	mu  sync.Mutex
	got []analysis.Request
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, req analysis.Request) (*analysis.AnalysisResult, error) {
	f.mu.Lock()
	f.got = append(f.got, req)
	f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeAnalyzer) requests() []analysis.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]analysis.Request(nil), f.got...)
}

type fakeStore struct {
	name  string
	count int64
	err   error
}

func (f *fakeStore) Name() string { return f.name }

func (f *fakeStore) Count(ctx context.Context) (int64, error) { return f.count, f.err }

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]retrieval.Match, error) {
	return nil, nil
}

type fakeHistory struct {
	records []models.AnalysisRecord
	err     error
	limit   int
}

func (f *fakeHistory) GetRecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	f.limit = limit
	return f.records, f.err
}

var testLimits = Limits{MaxQueryLength: 2000, MaxTopK: 100}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func postAnalyze(t *testing.T, app *fiber.App, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/analyze", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode, decode(t, resp.Body)
}

func analyzeApp(analyzer Analyzer, withValidation bool) *fiber.App {
	app := fiber.New()
	h := NewAnalysisHandler(analyzer, testLimits)
	if withValidation {
		app.Post("/api/analyze", validation.Middleware(validation.Config{MaxQueryLength: 2000, MaxTopK: 100}), h.HandleAnalyze)
	} else {
		app.Post("/api/analyze", h.HandleAnalyze)
	}
	return app
}

func TestHandleAnalyze_Success(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &analysis.AnalysisResult{
		Success:             true,
		Query:               "Safari vs XUV700",
		TataVehicle:         "safari",
		CompetitorsAnalyzed: []string{"Mahindra XUV700"},
		TataFeedbackCount:   8,
		TataSentimentStats:  analysis.SentimentStats{Positive: 5, Negative: 2, Neutral: 1, Total: 8, PositivePct: 62.5, NegativePct: 25, NeutralPct: 12.5},
		TataSampleFeedback:  []analysis.FeedbackRecord{},
		CompetitorAnalysis:  []analysis.CompetitorAnalysis{},
		FiltersApplied:      map[string]string{},
	}}

	for _, withValidation := range []bool{true, false} {
		status, body := postAnalyze(t, analyzeApp(analyzer, withValidation), `{"query":" Safari vs XUV700 ","top_k":5}`)

		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "safari", body["tata_vehicle"])
		assert.EqualValues(t, 8, body["tata_feedback_count"])
		stats := body["tata_sentiment_stats"].(map[string]interface{})
		assert.EqualValues(t, 62.5, stats["positive_pct"])
		assert.NotContains(t, body, "error")
	}

	require.Len(t, analyzer.got, 2)
	for _, req := range analyzer.got {
		assert.Equal(t, analysis.Request{Query: "Safari vs XUV700", TopK: 5}, req)
	}
}

func TestHandleAnalyze_DefaultTopKLeftToEngine(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &analysis.AnalysisResult{}}

	status, _ := postAnalyze(t, analyzeApp(analyzer, false), `{"query":"harrier"}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, analysis.Request{Query: "harrier"}, analyzer.got[0])
}

func TestHandleAnalyze_NoResultsIsWellFormed(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &analysis.AnalysisResult{
		Success:               false,
		TataVehicle:           "safari",
		ComprehensiveAnalysis: analysis.NoResultsMessage,
		Error:                 analysis.NoResultsError,
		FiltersApplied:        map[string]string{"location": "goa"},
	}}

	status, body := postAnalyze(t, analyzeApp(analyzer, true), `{"query":"safari in goa"}`)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No results found", body["error"])
	assert.Equal(t, map[string]interface{}{"location": "goa"}, body["filters_applied"])
}

func TestHandleAnalyze_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"empty query", `{"query":"  "}`, nil, fiber.StatusBadRequest, "Query cannot be empty"},
		{"bad json", `not json`, nil, fiber.StatusBadRequest, "Invalid JSON format"},
		{"bad top_k", `{"query":"q","top_k":500}`, nil, fiber.StatusBadRequest, "top_k must be between 1 and 100"},
		{"engine rejects query", `{"query":"q"}`, analysis.ErrEmptyQuery, fiber.StatusBadRequest, "Query cannot be empty"},
		{"engine rejects top_k", `{"query":"q"}`, analysis.ErrInvalidTopK, fiber.StatusBadRequest, "top_k out of range"},
		{"internal", `{"query":"q"}`, errors.New("boom"), fiber.StatusInternalServerError, "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{err: tt.err}

			status, body := postAnalyze(t, analyzeApp(analyzer, false), tt.body)

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantError, body["error"])
		})
	}
}

func TestHandleHealth(t *testing.T) {
	app := fiber.New()
	h := NewHealthHandler(
		&fakeStore{name: "tata_motors_sentiment", count: 1200},
		&fakeStore{name: "competitors_sentiment", count: 3400},
	)
	app.Get("/health", h.HandleHealth)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp.Body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"name": "tata_motors_sentiment", "vectors": float64(1200)}, body["tata_index"])
	assert.Equal(t, map[string]interface{}{"name": "competitors_sentiment", "vectors": float64(3400)}, body["competitor_index"])
	assert.Equal(t, []interface{}{"safari", "harrier"}, body["available_vehicles"])

	mapping := body["competitor_mapping"].(map[string]interface{})
	assert.Equal(t, []interface{}{"Jeep Compass", "MG Hector", "Hyundai Tucson"}, mapping["harrier"])
}

func TestHandleHealth_StoreFailure(t *testing.T) {
	app := fiber.New()
	h := NewHealthHandler(
		&fakeStore{name: "tata_motors_sentiment"},
		&fakeStore{name: "competitors_sentiment", err: errors.New("unavailable")},
	)
	app.Get("/health", h.HandleHealth)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Health check failed", decode(t, resp.Body)["error"])
}

func TestHandleRoot(t *testing.T) {
	app := fiber.New()
	app.Get("/", HandleRoot)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)

	body := decode(t, resp.Body)
	assert.Equal(t, "Tata Motors Competitive Intelligence API", body["message"])
	endpoints := body["endpoints"].(map[string]interface{})
	assert.Equal(t, "POST /api/analyze", endpoints["analyze"])
	assert.Equal(t, "GET /health", endpoints["health"])
}

func TestGetHistory(t *testing.T) {
	store := &fakeHistory{records: []models.AnalysisRecord{
		{ID: "a1", Query: "safari", Vehicle: "safari", Success: true, CreatedAt: time.Unix(1_700_000_000, 0)},
	}}
	app := fiber.New()
	app.Get("/api/history", NewHistoryHandler(store).GetHistory)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/history?limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, store.limit)

	body := decode(t, resp.Body)
	assert.EqualValues(t, 1, body["count"])
	first := body["history"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "a1", first["id"])

	resp, err = app.Test(httptest.NewRequest("GET", "/api/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, defaultHistoryLimit, store.limit)

	resp, err = app.Test(httptest.NewRequest("GET", "/api/history?limit=1000", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestGetHistory_Disabled(t *testing.T) {
	app := fiber.New()
	app.Get("/api/history", NewHistoryHandler(nil).GetHistory)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetHistory_StoreError(t *testing.T) {
	app := fiber.New()
	app.Get("/api/history", NewHistoryHandler(&fakeHistory{err: errors.New("locked")}).GetHistory)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/history", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
