package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ayuda-red/internal/domain"
)

// AidRequestRepository define el contrato de persistencia para solicitudes de ayuda.
type AidRequestRepository interface {
	Create(ctx context.Context, req domain.AidRequest) error
	GetByID(ctx context.Context, id string) (domain.AidRequest, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.AidRequest, error)
	UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// PgAidRequestRepository implementa AidRequestRepository usando pgxpool.
type PgAidRequestRepository struct {
	pool *pgxpool.Pool
}

func NewPgAidRequestRepository(pool *pgxpool.Pool) *PgAidRequestRepository {
	return &PgAidRequestRepository{pool: pool}
}

func (r *PgAidRequestRepository) Create(ctx context.Context, req domain.AidRequest) error {
	const query = `
		INSERT INTO aid_requests (id, user_id, title, description, category, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.pool.Exec(ctx, query,
		req.ID,
		req.UserID,
		req.Title,
		req.Description,
		req.Category,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	return err
}

func (r *PgAidRequestRepository) GetByID(ctx context.Context, id string) (domain.AidRequest, error) {
	const query = `
		SELECT id, user_id, title, description, category, status, created_at, updated_at
		FROM aid_requests
		WHERE id = $1
	`
	var a domain.AidRequest
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.UserID,
		&a.Title,
		&a.Description,
		&a.Category,
		&a.Status,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return domain.AidRequest{}, err
	}
	return a, nil
}

func (r *PgAidRequestRepository) ListByUser(ctx context.Context, userID int64) ([]domain.AidRequest, error) {
	const query = `
		SELECT id, user_id, title, description, category, status, created_at, updated_at
		FROM aid_requests
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.AidRequest
	for rows.Next() {
		var a domain.AidRequest
		if err := rows.Scan(
			&a.ID,
			&a.UserID,
			&a.Title,
			&a.Description,
			&a.Category,
			&a.Status,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *PgAidRequestRepository) UpdateStatus(ctx context.Context, id, status string, updatedAt time.Time) error {
	const query = `UPDATE aid_requests SET status = $2, updated_at = $3 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status, updatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgAidRequestRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM aid_requests WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
