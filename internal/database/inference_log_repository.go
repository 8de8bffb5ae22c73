package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// InferenceLogRepository handles inference log database operations
type InferenceLogRepository struct {
	db *sql.DB
}

// NewInferenceLogRepository creates a new repository
func NewInferenceLogRepository(db *sql.DB) *InferenceLogRepository {
	return &InferenceLogRepository{db: db}
}

// Create stores one completion attempt.
func (r *InferenceLogRepository) Create(ctx context.Context, log models.InferenceLog) error {
	query := `
		INSERT INTO inference_logs (
			request_id, provider, model, kind, attempt, input_tokens, output_tokens,
			cost_usd, latency_ms, status, error_message
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.RequestID,
		log.Provider,
		log.Model,
		log.Kind,
		log.Attempt,
		log.InputTokens,
		log.OutputTokens,
		log.CostUSD,
		log.LatencyMs,
		log.Status,
		log.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to insert inference log: %w", err)
	}

	return nil
}

// List retrieves inference logs, newest first, with optional filtering.
func (r *InferenceLogRepository) List(ctx context.Context, query models.InferenceLogQuery) ([]models.InferenceLog, error) {
	sqlQuery, args := buildListQuery(query)

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query inference logs: %w", err)
	}
	defer rows.Close()

	logs := []models.InferenceLog{}
	for rows.Next() {
		var log models.InferenceLog
		var errMsg sql.NullString

		err := rows.Scan(
			&log.ID,
			&log.RequestID,
			&log.Provider,
			&log.Model,
			&log.Kind,
			&log.Attempt,
			&log.InputTokens,
			&log.OutputTokens,
			&log.CostUSD,
			&log.LatencyMs,
			&log.Status,
			&errMsg,
			&log.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inference log: %w", err)
		}

		if errMsg.Valid {
			log.ErrorMessage = &errMsg.String
		}

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate inference logs: %w", err)
	}

	return logs, nil
}

// GetStats retrieves aggregated statistics for the given window.
func (r *InferenceLogRepository) GetStats(ctx context.Context, startDate, endDate *time.Time) (*models.InferenceLogStats, error) {
	query, args := buildStatsQuery(startDate, endDate)

	var stats models.InferenceLogStats
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalCalls,
		&stats.TotalTokens,
		&stats.TotalCostUSD,
		&stats.SuccessfulCalls,
		&stats.FailedCalls,
		&stats.AvgLatencyMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get inference stats: %w", err)
	}

	return &stats, nil
}

func buildListQuery(query models.InferenceLogQuery) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, request_id, provider, model, kind, attempt, input_tokens, output_tokens,
		cost_usd, latency_ms, status, error_message, created_at
		FROM inference_logs
		WHERE 1=1`)

	args := []interface{}{}
	add := func(clause string, value interface{}) {
		args = append(args, value)
		fmt.Fprintf(&sb, " AND %s $%d", clause, len(args))
	}

	if query.Provider != "" {
		add("provider =", query.Provider)
	}
	if query.Kind != "" {
		add("kind =", query.Kind)
	}
	if query.Status != "" {
		add("status =", query.Status)
	}
	if query.RequestID != "" {
		add("request_id =", query.RequestID)
	}
	if query.StartDate != nil {
		add("created_at >=", *query.StartDate)
	}
	if query.EndDate != nil {
		add("created_at <=", *query.EndDate)
	}

	sb.WriteString(" ORDER BY created_at DESC, id DESC")

	limit := query.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))

	if query.Offset > 0 {
		args = append(args, query.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	return sb.String(), args
}

func buildStatsQuery(startDate, endDate *time.Time) (string, []interface{}) {
	query := `
		SELECT
			COUNT(*) AS total_calls,
			COALESCE(SUM(input_tokens + output_tokens), 0) AS total_tokens,
			COALESCE(SUM(cost_usd), 0) AS total_cost_usd,
			COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0) AS successful_calls,
			COALESCE(SUM(CASE WHEN status <> 'success' THEN 1 ELSE 0 END), 0) AS failed_calls,
			COALESCE(AVG(latency_ms), 0) AS avg_latency_ms
		FROM inference_logs
		WHERE 1=1`
	args := []interface{}{}

	if startDate != nil {
		args = append(args, *startDate)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if endDate != nil {
		args = append(args, *endDate)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}

	return query, args
}
