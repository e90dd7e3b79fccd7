package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type searchCall struct {
	topK    int
	filters map[string]string
}

type fakeStore struct {
	mu         sync.Mutex
	filtered   []Match
	unfiltered []Match
	filterErr  error
	plainErr   error
	calls      []searchCall
}

func (f *fakeStore) Name() string { return "fake" }

func (f *fakeStore) Count(ctx context.Context) (int64, error) { return 0, nil }

func (f *fakeStore) Search(ctx context.Context, vector []float32, topK int, filters map[string]string) ([]Match, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, searchCall{topK: topK, filters: filters})
	if filters != nil {
		return f.filtered, f.filterErr
	}
	return f.unfiltered, f.plainErr
}

func matches(n int) []Match {
	out := make([]Match, n)
	for i := range out {
		out[i] = Match{ID: string(rune('a' + i)), Score: 0.9}
	}
	return out
}

func TestRetrieve_FilteredHit(t *testing.T) {
	store := &fakeStore{filtered: matches(3)}
	client := NewClient(&fakeEmbedder{})

	got := client.Retrieve(context.Background(), store, Request{
		SearchText: "safari comfort",
		Filters:    map[string]string{"location": "pune"},
		TopK:       10,
	})

	assert.Len(t, got, 3)
	require.Len(t, store.calls, 1)
	assert.Equal(t, 10, store.calls[0].topK)
	assert.Equal(t, map[string]string{"location": "Pune, India"}, store.calls[0].filters)
}

func TestRetrieve_FallbackWhenFilteredEmpty(t *testing.T) {
	store := &fakeStore{unfiltered: matches(4)}
	client := NewClient(&fakeEmbedder{})

	got := client.Retrieve(context.Background(), store, Request{
		SearchText: "x",
		Filters:    map[string]string{"location": "mumbai"},
		TopK:       4,
	})

	assert.Equal(t, matches(4), got)
	require.Len(t, store.calls, 2)
	assert.NotNil(t, store.calls[0].filters)
	assert.Nil(t, store.calls[1].filters)
}

func TestRetrieve_FallbackWhenFilteredFails(t *testing.T) {
	store := &fakeStore{filterErr: errors.New("bad expression"), unfiltered: matches(2)}
	client := NewClient(&fakeEmbedder{})

	got := client.Retrieve(context.Background(), store, Request{SearchText: "x", Brand: "MG Hector", TopK: 3})

	assert.Len(t, got, 2)
	assert.Len(t, store.calls, 2)
}

func TestRetrieve_NoFilterNoRetry(t *testing.T) {
	store := &fakeStore{}
	client := NewClient(&fakeEmbedder{})

	got := client.Retrieve(context.Background(), store, Request{SearchText: "x", TopK: 5})

	assert.Empty(t, got)
	require.Len(t, store.calls, 1)
	assert.Nil(t, store.calls[0].filters)
}

func TestRetrieve_EmbeddingFailure(t *testing.T) {
	store := &fakeStore{unfiltered: matches(2)}
	client := NewClient(&fakeEmbedder{err: errors.New("down")})

	got := client.Retrieve(context.Background(), store, Request{SearchText: "x", TopK: 5})

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, store.calls)
}

func TestRetrieve_UnfilteredFailure(t *testing.T) {
	store := &fakeStore{plainErr: errors.New("unavailable")}
	client := NewClient(&fakeEmbedder{})

	got := client.Retrieve(context.Background(), store, Request{SearchText: "x", Brand: "Jeep Compass", TopK: 5})

	assert.Empty(t, got)
	assert.Len(t, store.calls, 2)
}

func TestRetrieve_DoesNotMutateCallerFilters(t *testing.T) {
	store := &fakeStore{filtered: matches(1)}
	client := NewClient(&fakeEmbedder{})
	filters := map[string]string{"location": "pune"}

	client.Retrieve(context.Background(), store, Request{SearchText: "x", Filters: filters, Brand: "MG Hector", TopK: 1})

	assert.Equal(t, map[string]string{"location": "pune"}, filters)
	assert.Equal(t, map[string]string{"location": "Pune, India", "brand": "MG Hector"}, store.calls[0].filters)
}

func TestNormalizeLocation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"pune", "Pune, India"},
		{"new delhi", "New Delhi, India"},
		{"BENGALURU", "Bengaluru, India"},
		{"Mumbai, India", "Mumbai, India"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeLocation(tt.in))
		})
	}
}

func TestNormalizeFilters_DropsBlankValues(t *testing.T) {
	got := NormalizeFilters(map[string]string{"sentiment_label": "positive", "location": "  ", "": "x"}, "")
	assert.Equal(t, map[string]string{"sentiment_label": "positive"}, got)
}
