package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/metrics"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

var ErrEmptyResponse = errors.New("llm returned no content")

// Config describes one OpenAI-compatible endpoint. Gemini, OpenAI and
// self-hosted embedding servers all speak this protocol.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	chat             *openai.Client
	embed            *openai.Client
	model            string
	embeddingModel   string
	timeout          time.Duration
	embeddingTimeout time.Duration
}

type GenerateRequest struct {
	Purpose     string
	Prompt      string
	Temperature float32
	MaxTokens   int
}

func newOpenAIClient(cfg Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return openai.NewClientWithConfig(clientConfig)
}

func NewClient(chatCfg, embeddingCfg Config) *Client {
	if chatCfg.Timeout <= 0 {
		chatCfg.Timeout = 30 * time.Second
	}
	if embeddingCfg.Timeout <= 0 {
		embeddingCfg.Timeout = 15 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("model", chatCfg.Model),
		zap.String("embedding_model", embeddingCfg.Model),
		zap.Duration("timeout", chatCfg.Timeout),
	)

	return &Client{
		chat:             newOpenAIClient(chatCfg),
		embed:            newOpenAIClient(embeddingCfg),
		model:            chatCfg.Model,
		embeddingModel:   embeddingCfg.Model,
		timeout:          chatCfg.Timeout,
		embeddingTimeout: embeddingCfg.Timeout,
	}
}

// Generate makes a single completion attempt bounded by the configured timeout.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	purpose := req.Purpose
	if purpose == "" {
		purpose = "generic"
	}

	start := time.Now()
	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: req.Prompt,
			},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	metrics.LLMDuration.WithLabelValues(purpose).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues(purpose, "error").Inc()
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		metrics.LLMCallsTotal.WithLabelValues(purpose, "empty").Inc()
		return "", ErrEmptyResponse
	}

	metrics.LLMCallsTotal.WithLabelValues(purpose, "success").Inc()
	metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
	metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

	logger.Debug("LLM completion generated",
		zap.String("purpose", purpose),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return resp.Choices[0].Message.Content, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.embeddingTimeout)
	defer cancel()

	resp, err := c.embed.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		metrics.LLMCallsTotal.WithLabelValues("embedding", "error").Inc()
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		metrics.LLMCallsTotal.WithLabelValues("embedding", "empty").Inc()
		return nil, fmt.Errorf("failed to generate embedding: %w", ErrEmptyResponse)
	}

	metrics.LLMCallsTotal.WithLabelValues("embedding", "success").Inc()

	embedding := make([]float32, len(resp.Data[0].Embedding))
	copy(embedding, resp.Data[0].Embedding)

	return embedding, nil
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) EmbeddingModel() string {
	return c.embeddingModel
}
