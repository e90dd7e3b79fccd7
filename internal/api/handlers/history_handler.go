package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/storage/models"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type HistoryStore interface {
	GetRecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error)
}

type HistoryHandler struct {
	store HistoryStore
}

// NewHistoryHandler accepts a nil store; the endpoint then reports 503.
func NewHistoryHandler(store HistoryStore) *HistoryHandler {
	return &HistoryHandler{store: store}
}

func (h *HistoryHandler) GetHistory(c *fiber.Ctx) error {
	if h.store == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Analysis history is disabled",
		})
	}

	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit < 1 || limit > maxHistoryLimit {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit must be between 1 and 100",
		})
	}

	records, err := h.store.GetRecentAnalyses(c.UserContext(), limit)
	if err != nil {
		logger.Error("Failed to get analysis history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get analysis history",
		})
	}

	return c.JSON(fiber.Map{
		"history": records,
		"count":   len(records),
	})
}
