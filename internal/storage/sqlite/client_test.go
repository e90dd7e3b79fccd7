package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sanketmandwal/TataVision/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.InitSchema())
	return client
}

func TestInsertAndGetRecentAnalyses(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, client.InsertAnalysisRecord(ctx, &models.AnalysisRecord{
		ID:            "a1",
		Query:         "How is Safari doing?",
		Vehicle:       "safari",
		Success:       true,
		Competitors:   []string{"Mahindra XUV700", "Hyundai Alcazar"},
		FeedbackCount: 8,
		PositivePct:   62.5,
		NegativePct:   25,
		Filters:       map[string]string{"location": "Pune, India"},
		LatencyMS:     1200,
		CreatedAt:     base,
	}))
	require.NoError(t, client.InsertAnalysisRecord(ctx, &models.AnalysisRecord{
		ID:        "a2",
		Query:     "Harrier in Goa",
		Vehicle:   "harrier",
		Success:   false,
		Error:     "No results found",
		CreatedAt: base.Add(time.Minute),
	}))

	records, err := client.GetRecentAnalyses(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "a2", records[0].ID)
	assert.False(t, records[0].Success)
	assert.Equal(t, "No results found", records[0].Error)
	assert.Empty(t, records[0].Competitors)

	assert.Equal(t, "a1", records[1].ID)
	assert.True(t, records[1].Success)
	assert.Equal(t, []string{"Mahindra XUV700", "Hyundai Alcazar"}, records[1].Competitors)
	assert.Equal(t, map[string]string{"location": "Pune, India"}, records[1].Filters)
	assert.Equal(t, 62.5, records[1].PositivePct)
	assert.EqualValues(t, 1200, records[1].LatencyMS)
	assert.True(t, base.Equal(records[1].CreatedAt))
}

func TestGetRecentAnalyses_Limit(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, client.RecordAnalysis(ctx, &models.AnalysisRecord{ID: id, Query: "q", Vehicle: "safari"}))
	}

	records, err := client.GetRecentAnalyses(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestInsertAnalysisRecord_DuplicateID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rec := &models.AnalysisRecord{ID: "dup", Query: "q", Vehicle: "safari"}
	require.NoError(t, client.InsertAnalysisRecord(ctx, rec))
	assert.Error(t, client.InsertAnalysisRecord(ctx, rec))
}
