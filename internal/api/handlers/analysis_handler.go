package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/analysis"
	"github.com/Sanketmandwal/TataVision/internal/middleware/validation"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.AnalysisResult, error)
}

type Limits struct {
	MaxQueryLength int
	MaxTopK        int
}

type AnalysisHandler struct {
	analyzer Analyzer
	limits   Limits
}

func NewAnalysisHandler(analyzer Analyzer, limits Limits) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		limits:   limits,
	}
}

func (h *AnalysisHandler) HandleAnalyze(c *fiber.Ctx) error {
	req, ok := c.Locals(validation.LocalsKey).(*validation.AnalyzeRequest)
	if !ok {
		var msg string
		req, msg = validation.Parse(c, h.limits.MaxQueryLength, h.limits.MaxTopK)
		if msg != "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}
	}

	result, err := h.analyzer.Analyze(c.UserContext(), toAnalysisRequest(req))
	if err != nil {
		return analysisError(c, err)
	}

	return c.JSON(result)
}

func toAnalysisRequest(req *validation.AnalyzeRequest) analysis.Request {
	out := analysis.Request{Query: req.Query}
	if req.TopK != nil {
		out.TopK = *req.TopK
	}
	return out
}

func analysisError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, analysis.ErrEmptyQuery):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query cannot be empty",
		})
	case errors.Is(err, analysis.ErrInvalidTopK):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "top_k out of range",
		})
	}

	logger.Error("Failed to analyze query", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
