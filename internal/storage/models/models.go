package models

import "time"

type AnalysisRecord struct {
	ID            string            `json:"id"`
	Query         string            `json:"query"`
	Vehicle       string            `json:"tata_vehicle"`
	Success       bool              `json:"success"`
	Competitors   []string          `json:"competitors_analyzed"`
	FeedbackCount int               `json:"tata_feedback_count"`
	PositivePct   float64           `json:"positive_pct"`
	NegativePct   float64           `json:"negative_pct"`
	Filters       map[string]string `json:"filters_applied"`
	Error         string            `json:"error,omitempty"`
	LatencyMS     int64             `json:"latency_ms"`
	CreatedAt     time.Time         `json:"created_at"`
}
