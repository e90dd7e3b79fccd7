package analysis

import (
	"math"
	"strings"

	"github.com/Sanketmandwal/TataVision/internal/retrieval"
)

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"

	unknownValue = "Unknown"
)

// AggregateSentiment counts every match in Total but only canonical labels
// in the buckets, so the buckets may sum to less than Total.
func AggregateSentiment(matches []retrieval.Match) SentimentStats {
	stats := SentimentStats{Total: len(matches)}

	for _, m := range matches {
		label := SentimentNeutral
		if v, ok := m.Metadata[retrieval.FieldSentiment]; ok && v != "" {
			label = strings.ToLower(v)
		}

		switch label {
		case SentimentPositive:
			stats.Positive++
		case SentimentNegative:
			stats.Negative++
		case SentimentNeutral:
			stats.Neutral++
		}
	}

	if stats.Total > 0 {
		stats.PositivePct = percent(stats.Positive, stats.Total)
		stats.NegativePct = percent(stats.Negative, stats.Total)
		stats.NeutralPct = percent(stats.Neutral, stats.Total)
	}

	return stats
}

func percent(n, total int) float64 {
	return roundTo(float64(n)/float64(total)*100, 1)
}

// roundTo rounds half to even, so 6.25 becomes 6.2.
func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.RoundToEven(v*scale) / scale
}

// ExtractFeedback preserves match order. A non-empty brand overrides the
// brand stored on each match.
func ExtractFeedback(matches []retrieval.Match, brand string) []FeedbackRecord {
	records := make([]FeedbackRecord, 0, len(matches))

	for _, m := range matches {
		record := FeedbackRecord{
			Content:   metaOr(m, retrieval.FieldContent, ""),
			Location:  metaOr(m, retrieval.FieldLocation, unknownValue),
			Sentiment: metaOr(m, retrieval.FieldSentiment, SentimentNeutral),
			Score:     roundTo(float64(m.Score), 4),
			Brand:     brand,
		}
		if record.Brand == "" {
			record.Brand = metaOr(m, retrieval.FieldBrand, unknownValue)
		}
		records = append(records, record)
	}

	return records
}

func metaOr(m retrieval.Match, key, fallback string) string {
	if v, ok := m.Metadata[key]; ok && v != "" {
		return v
	}
	return fallback
}

func firstN(matches []retrieval.Match, n int) []retrieval.Match {
	if len(matches) > n {
		return matches[:n]
	}
	return matches
}
