package analysis

import "github.com/Sanketmandwal/TataVision/internal/retrieval"

type QueryIntent struct {
	Vehicle     string
	Competitors []string
	SearchText  string
	Filters     map[string]string
}

type FeedbackRecord struct {
	Content   string  `json:"content"`
	Location  string  `json:"location"`
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
	Brand     string  `json:"brand"`
}

type SentimentStats struct {
	Positive    int     `json:"positive"`
	Negative    int     `json:"negative"`
	Neutral     int     `json:"neutral"`
	Total       int     `json:"total"`
	PositivePct float64 `json:"positive_pct"`
	NegativePct float64 `json:"negative_pct"`
	NeutralPct  float64 `json:"neutral_pct"`
}

type CompetitorAnalysis struct {
	Name           string           `json:"name"`
	FeedbackCount  int              `json:"feedback_count"`
	SentimentStats SentimentStats   `json:"sentiment_stats"`
	SampleFeedback []FeedbackRecord `json:"sample_feedback"`
}

type AnalysisResult struct {
	ID                    string               `json:"id,omitempty"`
	Success               bool                 `json:"success"`
	Query                 string               `json:"query"`
	TataVehicle           string               `json:"tata_vehicle"`
	CompetitorsAnalyzed   []string             `json:"competitors_analyzed"`
	TataFeedbackCount     int                  `json:"tata_feedback_count"`
	TataSentimentStats    SentimentStats       `json:"tata_sentiment_stats"`
	TataSampleFeedback    []FeedbackRecord     `json:"tata_sample_feedback"`
	CompetitorAnalysis    []CompetitorAnalysis `json:"competitor_analysis"`
	ComprehensiveAnalysis string               `json:"comprehensive_analysis"`
	FiltersApplied        map[string]string    `json:"filters_applied"`
	Error                 string               `json:"error,omitempty"`
}

// CompetitorMatches pairs a competitor with its retrieved matches, keeping
// the competitor order stable for prompt building.
type CompetitorMatches struct {
	Name    string
	Matches []retrieval.Match
}
