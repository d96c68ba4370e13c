package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"moldubot/internal/model"
)

type NotificationRepository struct {
	db *pgxpool.Pool
}

func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Insert is idempotent on event_id.
func (r *NotificationRepository) Insert(ctx context.Context, n *model.Notification) error {
	query := `
        INSERT INTO notifications (user_id, type, content, event_id, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (event_id) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, n.UserID, n.Type, n.Content, n.EventID)
	return err
}
