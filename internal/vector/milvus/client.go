package milvus

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type CollectionConfig struct {
	Name         string
	VectorField  string
	MetricType   string
	NProbe       int
	OutputFields []string
	Timeout      time.Duration
}

// Client searches a single pre-populated collection. Several clients may
// share one connection.
type Client struct {
	client       client.Client
	collection   string
	vectorField  string
	metricType   entity.MetricType
	nprobe       int
	outputFields []string
	timeout      time.Duration
}

func Connect(ctx context.Context, endpoint, apiKey string) (client.Client, error) {
	c, err := client.NewClient(ctx, client.Config{
		Address: endpoint,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus connection established", zap.String("endpoint", endpoint))

	return c, nil
}

func NewClient(conn client.Client, cfg CollectionConfig) (*Client, error) {
	metric, err := parseMetricType(cfg.MetricType)
	if err != nil {
		return nil, err
	}

	if cfg.VectorField == "" {
		cfg.VectorField = "embedding"
	}
	if cfg.NProbe <= 0 {
		cfg.NProbe = 16
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	logger.Info("Milvus collection client initialized",
		zap.String("collection", cfg.Name),
		zap.String("metric", string(metric)),
		zap.Strings("output_fields", cfg.OutputFields),
	)

	return &Client{
		client:       conn,
		collection:   cfg.Name,
		vectorField:  cfg.VectorField,
		metricType:   metric,
		nprobe:       cfg.NProbe,
		outputFields: cfg.OutputFields,
		timeout:      cfg.Timeout,
	}, nil
}

func (m *Client) Name() string {
	return m.collection
}

func (m *Client) Search(ctx context.Context, queryEmbedding []float32, topK int, filters map[string]string) ([]retrieval.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	expr := BuildExpression(filters)

	sp, err := entity.NewIndexIvfFlatSearchParam(m.nprobe)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := m.client.Search(
		ctx,
		m.collection,
		[]string{},
		expr,
		m.outputFields,
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		m.vectorField,
		m.metricType,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", m.collection, err)
	}

	results := make([]retrieval.Match, 0, topK)
	for _, sr := range searchResult {
		if sr.Err != nil {
			return nil, fmt.Errorf("failed to search %s: %w", m.collection, sr.Err)
		}
		results = append(results, decodeResults(sr.Fields, sr.IDs, sr.Scores, sr.ResultCount, m.outputFields)...)
	}

	logger.Debug("Vector search completed",
		zap.String("collection", m.collection),
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
		zap.String("expr", expr),
	)

	return results, nil
}

func (m *Client) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	stats, err := m.client.GetCollectionStatistics(ctx, m.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get statistics for %s: %w", m.collection, err)
	}

	count, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse row count for %s: %w", m.collection, err)
	}

	return count, nil
}

// BuildExpression turns equality filters into a boolean expression with a
// stable key order. Keys that are not valid field identifiers are skipped.
func BuildExpression(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}

	keys := make([]string, 0, len(filters))
	for k := range filters {
		if !identifierPattern.MatchString(k) {
			logger.Warn("Skipping invalid filter key", zap.String("key", k))
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	clauses := make([]string, 0, len(keys))
	for _, k := range keys {
		clauses = append(clauses, fmt.Sprintf(`%s == "%s"`, k, escapeValue(filters[k])))
	}

	return strings.Join(clauses, " && ")
}

func escapeValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}

func parseMetricType(name string) (entity.MetricType, error) {
	switch strings.ToUpper(name) {
	case "", "COSINE":
		return entity.COSINE, nil
	case "L2":
		return entity.L2, nil
	case "IP":
		return entity.IP, nil
	default:
		return "", fmt.Errorf("unsupported metric type: %s", name)
	}
}

// decodeResults reads output fields by name. Fields outside the schema come
// back from the SDK as dynamic columns holding the raw JSON of each value.
func decodeResults(fields client.ResultSet, ids entity.Column, scores []float32, count int, outputFields []string) []retrieval.Match {
	results := make([]retrieval.Match, 0, count)
	for i := 0; i < count; i++ {
		match := retrieval.Match{Metadata: make(map[string]string, len(outputFields))}

		if ids != nil {
			if id, err := ids.Get(i); err == nil {
				match.ID = fmt.Sprint(id)
			}
		}
		if i < len(scores) {
			match.Score = scores[i]
		}

		for _, name := range outputFields {
			col := fields.GetColumn(name)
			if col == nil {
				continue
			}

			var value string
			if dyn, ok := col.(*entity.ColumnDynamic); ok {
				value = dynamicValue(dyn, i)
			} else {
				v, err := col.Get(i)
				if err != nil {
					continue
				}
				value = stringify(v)
			}

			if value != "" {
				match.Metadata[name] = value
			}
		}

		results = append(results, match)
	}

	return results
}

// dynamicValue unquotes JSON strings and keeps the raw text of numbers and
// booleans. Missing keys and JSON null read as empty.
func dynamicValue(col *entity.ColumnDynamic, idx int) string {
	if s, err := col.GetAsString(idx); err == nil {
		return s
	}

	raw, err := col.Get(idx)
	if err != nil {
		return ""
	}

	text, ok := raw.(string)
	if !ok || text == "null" {
		return ""
	}
	return text
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
