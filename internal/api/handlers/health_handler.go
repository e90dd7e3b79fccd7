package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sanketmandwal/TataVision/internal/analysis"
	"github.com/Sanketmandwal/TataVision/internal/retrieval"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

const (
	serviceName        = "Tata Motors Competitive Intelligence API"
	serviceVersion     = "2.0.0"
	serviceDescription = "AI-powered competitive analysis for Tata Harrier & Safari"
)

type HealthHandler struct {
	vehicleStore    retrieval.Store
	competitorStore retrieval.Store
}

func NewHealthHandler(vehicleStore, competitorStore retrieval.Store) *HealthHandler {
	return &HealthHandler{
		vehicleStore:    vehicleStore,
		competitorStore: competitorStore,
	}
}

func (h *HealthHandler) HandleHealth(c *fiber.Ctx) error {
	var vehicleCount, competitorCount int64

	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		n, err := h.vehicleStore.Count(ctx)
		vehicleCount = n
		return err
	})
	g.Go(func() error {
		n, err := h.competitorStore.Count(ctx)
		competitorCount = n
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Health check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Health check failed",
		})
	}

	return c.JSON(fiber.Map{
		"status": "healthy",
		"tata_index": fiber.Map{
			"name":    h.vehicleStore.Name(),
			"vectors": vehicleCount,
		},
		"competitor_index": fiber.Map{
			"name":    h.competitorStore.Name(),
			"vectors": competitorCount,
		},
		"available_vehicles": analysis.VehicleKeys(),
		"competitor_mapping": analysis.CompetitorMapping(),
	})
}

func HandleRoot(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":     serviceName,
		"version":     serviceVersion,
		"description": serviceDescription,
		"endpoints": fiber.Map{
			"health":  "GET /health",
			"analyze": "POST /api/analyze",
			"history": "GET /api/history",
			"stream":  "GET /ws/analyze",
			"metrics": "GET /metrics",
		},
	})
}
