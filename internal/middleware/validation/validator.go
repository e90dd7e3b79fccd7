package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocalsKey is where a validated *AnalyzeRequest is stored on the context.
const LocalsKey = "analyze_request"

type AnalyzeRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"top_k,omitempty"`
}

type Config struct {
	MaxQueryLength int
	MaxTopK        int
	Logger         *zap.Logger
}

// Middleware validates analysis request bodies. Query text is free-form
// natural language and is not pattern-filtered; it only reaches the LLM
// prompt and the vector store as a search string.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = 2000
	}
	if cfg.MaxTopK <= 0 {
		cfg.MaxTopK = 100
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if !strings.HasPrefix(strings.ToLower(contentType), fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Content-Type must be application/json",
			})
		}

		req, msg := Parse(c, cfg.MaxQueryLength, cfg.MaxTopK)
		if msg != "" {
			cfg.Logger.Debug("Rejected analysis request",
				zap.String("ip", c.IP()),
				zap.String("reason", msg),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": msg,
			})
		}

		c.Locals(LocalsKey, req)

		return c.Next()
	}
}

// Parse decodes and validates a request body, returning a client-facing
// message on failure.
func Parse(c *fiber.Ctx, maxQueryLength, maxTopK int) (*AnalyzeRequest, string) {
	var req AnalyzeRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, "Invalid JSON format"
	}

	if msg := Validate(&req, maxQueryLength, maxTopK); msg != "" {
		return nil, msg
	}

	return &req, ""
}

// Validate sanitizes req.Query in place and checks it against the limits.
func Validate(req *AnalyzeRequest, maxQueryLength, maxTopK int) string {
	if maxTopK <= 0 {
		maxTopK = 100
	}

	req.Query = sanitizeString(req.Query)
	if req.Query == "" {
		return "Query cannot be empty"
	}

	if maxQueryLength > 0 && utf8.RuneCountInString(req.Query) > maxQueryLength {
		return "Query exceeds maximum length"
	}

	if req.TopK != nil && (*req.TopK < 1 || *req.TopK > maxTopK) {
		return fmt.Sprintf("top_k must be between 1 and %d", maxTopK)
	}

	return ""
}

func sanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
