package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Sanketmandwal/TataVision/internal/storage/models"
	"github.com/Sanketmandwal/TataVision/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_history (
		id TEXT PRIMARY KEY,
		query_text TEXT NOT NULL,
		vehicle TEXT NOT NULL,
		success INTEGER NOT NULL,
		competitors TEXT,
		feedback_count INTEGER NOT NULL DEFAULT 0,
		positive_pct REAL,
		negative_pct REAL,
		filters TEXT,
		error TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_analysis_created ON analysis_history(created_at);
	CREATE INDEX IF NOT EXISTS idx_analysis_vehicle ON analysis_history(vehicle);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) InsertAnalysisRecord(ctx context.Context, record *models.AnalysisRecord) error {
	query := `
		INSERT INTO analysis_history (id, query_text, vehicle, success, competitors, feedback_count,
			positive_pct, negative_pct, filters, error, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	competitorsJSON, err := json.Marshal(record.Competitors)
	if err != nil {
		return fmt.Errorf("failed to marshal competitors: %w", err)
	}

	filtersJSON, err := json.Marshal(record.Filters)
	if err != nil {
		return fmt.Errorf("failed to marshal filters: %w", err)
	}

	success := 0
	if record.Success {
		success = 1
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err = c.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Query,
		record.Vehicle,
		success,
		string(competitorsJSON),
		record.FeedbackCount,
		record.PositivePct,
		record.NegativePct,
		string(filtersJSON),
		record.Error,
		record.LatencyMS,
		createdAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis record: %w", err)
	}

	logger.Debug("Analysis recorded",
		zap.String("analysis_id", record.ID),
		zap.String("vehicle", record.Vehicle),
		zap.Bool("success", record.Success),
	)

	return nil
}

func (c *Client) GetRecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisRecord, error) {
	query := `
		SELECT id, query_text, vehicle, success, competitors, feedback_count,
			positive_pct, negative_pct, filters, error, latency_ms, created_at
		FROM analysis_history
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis history: %w", err)
	}
	defer rows.Close()

	records := make([]models.AnalysisRecord, 0)
	for rows.Next() {
		var r models.AnalysisRecord
		var success int
		var competitorsJSON, filtersJSON, errText sql.NullString
		var createdAt int64

		err := rows.Scan(
			&r.ID,
			&r.Query,
			&r.Vehicle,
			&success,
			&competitorsJSON,
			&r.FeedbackCount,
			&r.PositivePct,
			&r.NegativePct,
			&filtersJSON,
			&errText,
			&r.LatencyMS,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Success = success == 1
		r.Error = errText.String
		r.CreatedAt = time.UnixMilli(createdAt)

		if competitorsJSON.Valid {
			if err := json.Unmarshal([]byte(competitorsJSON.String), &r.Competitors); err != nil {
				logger.Warn("Failed to decode stored competitors", zap.String("analysis_id", r.ID), zap.Error(err))
			}
		}
		if filtersJSON.Valid {
			if err := json.Unmarshal([]byte(filtersJSON.String), &r.Filters); err != nil {
				logger.Warn("Failed to decode stored filters", zap.String("analysis_id", r.ID), zap.Error(err))
			}
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analysis history: %w", err)
	}

	return records, nil
}

// RecordAnalysis lets the client serve as the analysis engine's recorder.
func (c *Client) RecordAnalysis(ctx context.Context, record *models.AnalysisRecord) error {
	return c.InsertAnalysisRecord(ctx, record)
}
