package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/property-listings/internal/model"
)

// AnalysisRepo stores a user's library of saved analyses.
type AnalysisRepo struct{ db *sql.DB }

func NewAnalysisRepo(db *sql.DB) *AnalysisRepo { return &AnalysisRepo{db: db} }

func (r *AnalysisRepo) Create(ctx context.Context, a *model.SavedAnalysis) error {
	return r.db.QueryRowContext(ctx,
		"INSERT INTO saved_analyses (user_id, address, title, payload) VALUES ($1,$2,$3,$4) RETURNING id, created_at",
		a.UserID, a.Address, a.Title, []byte(a.Payload),
	).Scan(&a.ID, &a.CreatedAt)
}

// ListByUser returns one page of the user's analyses, newest first.
func (r *AnalysisRepo) ListByUser(ctx context.Context, userID string, page, size int) ([]model.SavedAnalysis, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM saved_analyses WHERE user_id=$1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, size = Paginate(page, size)
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, address, title, payload, created_at
		FROM saved_analyses WHERE user_id=$1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, userID, size, (page-1)*size)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.SavedAnalysis, 0, size)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetByID returns an analysis only when it belongs to userID; someone
// else's entry is reported as ErrNotFound.
func (r *AnalysisRepo) GetByID(ctx context.Context, userID, id string) (model.SavedAnalysis, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, address, title, payload, created_at
		FROM saved_analyses WHERE id=$1 AND user_id=$2`, id, userID)
	a, err := scanAnalysis(row)
	return a, notFound(err)
}

func (r *AnalysisRepo) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM saved_analyses WHERE id=$1 AND user_id=$2", id, userID)
	return affectedOne(res, err)
}

func scanAnalysis(row rowScanner) (model.SavedAnalysis, error) {
	var (
		a       model.SavedAnalysis
		payload []byte
	)
	if err := row.Scan(&a.ID, &a.UserID, &a.Address, &a.Title, &payload, &a.CreatedAt); err != nil {
		return model.SavedAnalysis{}, err
	}
	a.Payload = payload
	return a, nil
}
