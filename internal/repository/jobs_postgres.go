package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/textforge/humanizer-back/internal/domain"
)

type PostgresJobsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresJobsRepository(ctx context.Context, databaseURL string) (*PostgresJobsRepository, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return &PostgresJobsRepository{pool: pool}, nil
}

func (r *PostgresJobsRepository) Close() {
	r.pool.Close()
}

func (r *PostgresJobsRepository) CreateJob(ctx context.Context, job *domain.JobRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transform_jobs (
			id,
			user_id,
			project_id,
			strategy,
			level,
			status,
			result,
			error_message,
			created_at,
			updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`,
		job.ID,
		job.UserID,
		job.ProjectID,
		string(job.Strategy),
		job.Level,
		string(job.Status),
		job.Result,
		job.ErrorMessage,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transform job: %w", err)
	}
	return nil
}

func (r *PostgresJobsRepository) UpdateJob(ctx context.Context, job *domain.JobRecord) error {
	command, err := r.pool.Exec(ctx, `
		UPDATE transform_jobs
		SET status = $2,
			result = $3,
			error_message = $4,
			updated_at = $5
		WHERE id = $1
	`, job.ID, string(job.Status), job.Result, job.ErrorMessage, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update transform job: %w", err)
	}
	if command.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresJobsRepository) GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error) {
	var (
		job       domain.JobRecord
		strategy  string
		status    string
		result    []byte
		createdAt time.Time
		updatedAt time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, project_id, strategy, level, status, result, error_message, created_at, updated_at
		FROM transform_jobs
		WHERE id = $1
	`, jobID).Scan(
		&job.ID,
		&job.UserID,
		&job.ProjectID,
		&strategy,
		&job.Level,
		&status,
		&result,
		&job.ErrorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query transform job: %w", err)
	}

	job.Strategy = domain.StrategyName(strategy)
	job.Status = domain.JobStatus(status)
	job.Result = json.RawMessage(result)
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return &job, nil
}
