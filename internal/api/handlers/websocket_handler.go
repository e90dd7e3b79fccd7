package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/analysis"
	"github.com/Sanketmandwal/TataVision/internal/metrics"
	"github.com/Sanketmandwal/TataVision/internal/middleware/validation"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

type WebSocketHandler struct {
	analyzer Analyzer
	limits   Limits
}

type wsRequest struct {
	Type    string `json:"type"`
	Content string `json:"content"`
	TopK    *int   `json:"top_k,omitempty"`
}

func NewWebSocketHandler(analyzer Analyzer, limits Limits) *WebSocketHandler {
	return &WebSocketHandler{
		analyzer: analyzer,
		limits:   limits,
	}
}

// Register mounts /ws/analyze. Middleware runs on the upgrade request,
// ahead of the upgrade check.
func (h *WebSocketHandler) Register(router fiber.Router, middleware ...fiber.Handler) {
	args := []interface{}{"/ws"}
	for _, m := range middleware {
		args = append(args, m)
	}
	router.Use(append(args, fiber.Handler(h.Upgrade))...)
	router.Get("/ws/analyze", websocket.New(h.HandleConnection))
}

// Upgrade rejects plain HTTP requests before the websocket handler runs.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")
	metrics.ActiveStreams.Inc()

	defer func() {
		metrics.ActiveStreams.Dec()
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg wsRequest
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "query" {
			continue
		}

		req := &validation.AnalyzeRequest{Query: msg.Content, TopK: msg.TopK}
		if reason := validation.Validate(req, h.limits.MaxQueryLength, h.limits.MaxTopK); reason != "" {
			if err := h.sendError(c, reason); err != nil {
				break
			}
			continue
		}

		if err := h.streamResponse(c, req); err != nil {
			logger.Error("Failed to stream analysis", zap.Error(err))
			if err := h.sendError(c, "Failed to process query"); err != nil {
				break
			}
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, req *validation.AnalyzeRequest) error {
	if err := h.sendChunk(c, "status", "Processing query..."); err != nil {
		return err
	}

	result, err := h.analyzer.Analyze(context.Background(), toAnalysisRequest(req))
	if err != nil {
		return err
	}

	words := splitIntoWords(result.ComprehensiveAnalysis)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, result)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(fiber.Map{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, result *analysis.AnalysisResult) error {
	return c.WriteJSON(fiber.Map{
		"type":   "complete",
		"result": result,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) error {
	return c.WriteJSON(fiber.Map{
		"type":  "error",
		"error": errorMsg,
	})
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := []rune{}

	flush := func() {
		if len(currentWord) > 0 {
			words = append(words, string(currentWord))
			currentWord = currentWord[:0]
		}
	}

	for _, char := range text {
		switch char {
		case ' ', '\t':
			flush()
		case '\n':
			flush()
			words = append(words, "\n")
		default:
			currentWord = append(currentWord, char)
		}
	}
	flush()

	return words
}
