package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/metrics"
	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
	"github.com/Sanketmandwal/TataVision/pkg/utils"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	return NewClientWithAddr(fmt.Sprintf("%s:%d", host, port), password, db)
}

func NewClientWithAddr(addr, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", addr))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func embeddingKey(model, textHash string) string {
	return fmt.Sprintf("embedding:%s:%s", model, textHash)
}

func (c *Client) SetEmbedding(ctx context.Context, model, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, embeddingKey(model, textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, model, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, embeddingKey(model, textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// CachedEmbedder memoizes embeddings in redis. Cache failures fall through
// to the wrapped embedder and never fail the call.
type CachedEmbedder struct {
	cache *Client
	next  retrieval.Embedder
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(cache *Client, next retrieval.Embedder, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		cache: cache,
		next:  next,
		model: model,
		ttl:   ttl,
	}
}

func (e *CachedEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	textHash := utils.HashString(text)

	cached, ok, err := e.cache.GetEmbedding(ctx, e.model, textHash)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	if ok {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err := e.next.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, e.model, textHash, embedding, e.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}
