package analysis

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/llm"
	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

const (
	reportTemperature = 0.7
	reportMaxTokens   = 800

	vehicleSnippets    = 5
	competitorSnippets = 3

	ReportFailureMessage = "Failed to generate analysis. Please try again."
)

type ReportGenerator struct {
	generator Generator
}

func NewReportGenerator(generator Generator) *ReportGenerator {
	return &ReportGenerator{generator: generator}
}

// Generate returns ReportFailureMessage instead of an error.
func (r *ReportGenerator) Generate(ctx context.Context, query, vehicle string, vehicleMatches []retrieval.Match, competitors []CompetitorMatches) string {
	prompt := buildReportPrompt(query, vehicle, vehicleMatches, competitors)

	output, err := r.generator.Generate(ctx, llm.GenerateRequest{
		Purpose:     "report",
		Prompt:      prompt,
		Temperature: reportTemperature,
		MaxTokens:   reportMaxTokens,
	})
	if err != nil {
		logger.Error("Failed to generate comparative analysis",
			zap.String("vehicle", vehicle),
			zap.Error(err),
		)
		return ReportFailureMessage
	}

	output = strings.TrimSpace(output)
	if output == "" {
		return ReportFailureMessage
	}

	logger.Info("Comparative analysis generated",
		zap.String("vehicle", vehicle),
		zap.Int("length", len(output)),
	)

	return output
}

func snippets(matches []retrieval.Match, n int) []string {
	out := make([]string, 0, n)
	for _, m := range firstN(matches, n) {
		out = append(out, m.Metadata[retrieval.FieldContent])
	}
	return out
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func buildReportPrompt(query, vehicle string, vehicleMatches []retrieval.Match, competitors []CompetitorMatches) string {
	stats := AggregateSentiment(vehicleMatches)
	name := DisplayName(vehicle)
	upper := strings.ToUpper(vehicle)

	var feedback strings.Builder
	for _, s := range snippets(vehicleMatches, vehicleSnippets) {
		fmt.Fprintf(&feedback, "- %s\n", s)
	}

	var competitorText strings.Builder
	for _, c := range competitors {
		cs := AggregateSentiment(c.Matches)
		fmt.Fprintf(&competitorText, "\n%s:\n- Sentiment: %s positive, %s negative\n- Sample feedback:\n", c.Name, pct(cs.PositivePct), pct(cs.NegativePct))
		for _, s := range snippets(c.Matches, competitorSnippets) {
			fmt.Fprintf(&competitorText, "  - %s\n", s)
		}
	}
	if len(competitors) == 0 {
		competitorText.WriteString("No competitor feedback was found for this query.\n")
	}

	return fmt.Sprintf(`
You are a senior automotive market analyst for Tata Motors. Your role is to provide actionable competitive insights.

IMPORTANT CONTEXT:
- You are ONLY analyzing Tata %[1]s and its direct competitors
- Do NOT discuss any other Tata vehicles
- Focus on competitive positioning and sales growth strategies

User Query: %[2]q

TATA %[1]s DATA:
Sentiment Distribution: %[3]s positive, %[4]s negative, %[5]s neutral
Total Feedback Analyzed: %[6]d

Customer Feedback:
%[7]s
COMPETITOR DATA:
%[8]s
ANALYSIS REQUIREMENTS:
Provide a comprehensive analysis with these sections:

1. EXECUTIVE SUMMARY (2-3 sentences)
   - Direct answer to the user's question
   - Key takeaway about Tata %[9]s's market position

2. SENTIMENT COMPARISON
   - Compare Tata %[9]s's sentiment with competitors
   - Highlight where Tata leads or lags

3. KEY STRENGTHS (3-4 points)
   - What customers love about Tata %[9]s
   - Competitive advantages to emphasize in marketing

4. AREAS FOR IMPROVEMENT (3-4 points)
   - Where competitors are outperforming
   - Customer pain points to address

5. ACTIONABLE RECOMMENDATIONS (3-5 specific actions)
   - Sales & marketing strategies
   - Product improvements
   - Customer experience enhancements
   - Pricing/positioning adjustments

Keep the tone professional, data-driven, and focused on driving sales growth. Use bullet points for clarity.
Total length: 300-400 words.
`, upper, query, pct(stats.PositivePct), pct(stats.NegativePct), pct(stats.NeutralPct), stats.Total, feedback.String(), competitorText.String(), name)
}
