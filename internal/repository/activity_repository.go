package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/property-listings/internal/model"
)

// ActivityRepo appends to and reads the activity_logs audit table.
type ActivityRepo struct{ db *sql.DB }

func NewActivityRepo(db *sql.DB) *ActivityRepo { return &ActivityRepo{db: db} }

// Log writes one entry. An empty userID is stored as NULL.
func (r *ActivityRepo) Log(ctx context.Context, userID, action, subject, ip string) error {
	var uid *string
	if userID != "" {
		uid = &userID
	}
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO activity_logs (user_id, action, subject, ip) VALUES ($1,$2,$3,$4)",
		uid, action, subject, ip)
	return err
}

// Recent returns the newest entries, at most limit of them.
func (r *ActivityRepo) Recent(ctx context.Context, limit int) ([]model.ActivityLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, user_id, action, subject, ip, created_at FROM activity_logs ORDER BY created_at DESC, id DESC LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ActivityLog{}
	for rows.Next() {
		var (
			a   model.ActivityLog
			uid sql.NullString
		)
		if err := rows.Scan(&a.ID, &uid, &a.Action, &a.Subject, &a.IP, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.UserID = stringPtr(uid)
		out = append(out, a)
	}
	return out, rows.Err()
}
