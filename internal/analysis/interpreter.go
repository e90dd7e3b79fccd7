package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/llm"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

const (
	interpretTemperature = 0.3
	interpretMaxTokens   = 200
)

type Generator interface {
	Generate(ctx context.Context, req llm.GenerateRequest) (string, error)
}

type Interpreter struct {
	generator Generator
}

func NewInterpreter(generator Generator) *Interpreter {
	return &Interpreter{generator: generator}
}

// rawIntent mirrors the JSON the model is asked for. Fields are left loosely
// typed because model output is untrusted.
type rawIntent struct {
	TataVehicle    interface{} `json:"tata_vehicle"`
	Competitors    interface{} `json:"competitors"`
	EmbeddingQuery interface{} `json:"embedding_query"`
	Filter         interface{} `json:"filter"`
}

func DefaultIntent(query string) QueryIntent {
	return QueryIntent{
		Vehicle:     DefaultVehicle,
		Competitors: CompetitorsFor(DefaultVehicle),
		SearchText:  query,
		Filters:     map[string]string{},
	}
}

// Interpret never fails; any call or parse error yields DefaultIntent.
func (i *Interpreter) Interpret(ctx context.Context, query string) QueryIntent {
	output, err := i.generator.Generate(ctx, llm.GenerateRequest{
		Purpose:     "interpret",
		Prompt:      buildInterpretPrompt(query),
		Temperature: interpretTemperature,
		MaxTokens:   interpretMaxTokens,
	})
	if err != nil {
		logger.Warn("Query interpretation call failed, using default intent", zap.Error(err))
		return DefaultIntent(query)
	}

	intent, err := ParseIntent(output, query)
	if err != nil {
		logger.Warn("Failed to parse query intent, using default intent",
			zap.Error(err),
			zap.String("output", output),
		)
		return DefaultIntent(query)
	}

	logger.Info("Query interpreted",
		zap.String("vehicle", intent.Vehicle),
		zap.Strings("competitors", intent.Competitors),
		zap.Any("filters", intent.Filters),
	)

	return intent
}

// ParseIntent coerces model output into a valid QueryIntent. It only
// errors when the text is not a JSON object.
func ParseIntent(output, query string) (QueryIntent, error) {
	var raw rawIntent
	if err := json.Unmarshal([]byte(cleanJSONResponse(output)), &raw); err != nil {
		return QueryIntent{}, fmt.Errorf("failed to decode intent: %w", err)
	}

	vehicle := DefaultVehicle
	if s, ok := raw.TataVehicle.(string); ok {
		vehicle = strings.ToLower(strings.TrimSpace(s))
	}
	if !IsKnownVehicle(vehicle) {
		vehicle = DefaultVehicle
	}

	competitors := coerceStrings(raw.Competitors)
	if len(competitors) == 0 {
		competitors = CompetitorsFor(vehicle)
	}

	searchText := query
	if s, ok := raw.EmbeddingQuery.(string); ok && strings.TrimSpace(s) != "" {
		searchText = strings.TrimSpace(s)
	}

	return QueryIntent{
		Vehicle:     vehicle,
		Competitors: competitors,
		SearchText:  searchText,
		Filters:     coerceFilters(raw.Filter),
	}, nil
}

// cleanJSONResponse strips a surrounding markdown code fence, with or
// without a language tag.
func cleanJSONResponse(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimPrefix(text, "json")
		text = strings.TrimPrefix(text, "JSON")
	}
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func coerceStrings(v interface{}) []string {
	var items []interface{}
	switch val := v.(type) {
	case []interface{}:
		items = val
	case string:
		items = []interface{}{val}
	default:
		return nil
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceFilters(v interface{}) map[string]string {
	out := map[string]string{}

	obj, ok := v.(map[string]interface{})
	if !ok {
		return out
	}

	for k, val := range obj {
		var s string
		switch typed := val.(type) {
		case string:
			s = strings.TrimSpace(typed)
		case float64:
			s = strconv.FormatFloat(typed, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(typed)
		default:
			continue
		}
		if k != "" && s != "" {
			out[k] = s
		}
	}

	return out
}

func buildInterpretPrompt(query string) string {
	var lines []string
	for _, v := range Catalog {
		lines = append(lines, fmt.Sprintf("- %s: competes with %s", DisplayName(v.Key), strings.Join(v.Competitors, ", ")))
	}

	example, _ := json.Marshal(map[string]interface{}{
		"tata_vehicle":    DefaultVehicle,
		"competitors":     CompetitorsFor(DefaultVehicle),
		"embedding_query": DefaultVehicle + " vehicle feedback",
		"filter":          map[string]string{},
	})

	return fmt.Sprintf(`
You are analyzing a query about Tata Motors vehicles. Only respond about Tata Harrier or Tata Safari.

User query: %q

Available Tata vehicles and their competitors:
%s

Analyze the query and return JSON with:
- "tata_vehicle": "safari" or "harrier" (detect from query, default to "%s" if unclear)
- "competitors": list of competitor names (use default competitors unless user specifies)
- "embedding_query": semantic search text focusing on the vehicle and aspects mentioned
- "filter": metadata filters for sentiment_label and/or location

Rules:
1. If user doesn't specify vehicle, default to "%s"
2. If user mentions specific competitor, only include that one
3. For location, format as "City, India"
4. Only include filters if explicitly mentioned

Return ONLY valid JSON.

Example: %s
`, query, strings.Join(lines, "\n"), DefaultVehicle, DefaultVehicle, example)
}
