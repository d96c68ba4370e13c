package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"moldubot/internal/model"
	"moldubot/pkg/otel"
)

type MailRepository struct {
	db *pgxpool.Pool
}

func NewMailRepository(db *pgxpool.Pool) *MailRepository {
	return &MailRepository{db: db}
}

// LatestMail returns the most recently received message. The body falls back
// from the cleaned text to the full body to the preview.
func (r *MailRepository) LatestMail(ctx context.Context) (*model.Mail, error) {
	ctx, span := otel.DBSpan(ctx, "select", "emails")
	query := `
        SELECT COALESCE(message_id, ''),
               COALESCE(subject, ''),
               COALESCE(from_address, ''),
               COALESCE(to_char(received_date, 'YYYY-MM-DD HH24:MI:SS'), ''),
               COALESCE(body_clean, body_full, body_preview, '')
        FROM emails
        ORDER BY received_date DESC NULLS LAST
        LIMIT 1
    `
	var m model.Mail
	err := r.db.QueryRow(ctx, query).Scan(
		&m.MessageID,
		&m.Subject,
		&m.FromAddress,
		&m.ReceivedDate,
		&m.BodyText,
	)
	otel.EndDBSpan(span, err)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
