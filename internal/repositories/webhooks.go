package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rcourtman/netpulse/internal/apperr"
	"github.com/rcourtman/netpulse/internal/models"
	"github.com/rcourtman/netpulse/internal/storage"
)

// WebhookRepository is typed CRUD over webhook_endpoints, supplementing
// spec §4.10 with the storage shape the distilled spec leaves undefined.
type WebhookRepository struct {
	db *storage.DB
}

func NewWebhookRepository(db *storage.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

const webhookSelect = `SELECT id, url, enabled, secret, created_at FROM webhook_endpoints`

func (r *WebhookRepository) Insert(ctx context.Context, w *models.WebhookEndpoint) (int64, error) {
	if w.URL == "" {
		return 0, apperr.Validation("webhook url must not be empty")
	}
	res, err := r.db.Raw().ExecContext(ctx,
		`INSERT INTO webhook_endpoints (url, enabled, secret, created_at) VALUES (?, ?, ?, ?)`,
		w.URL, w.Enabled, w.Secret, formatTime(w.CreatedAt))
	if err != nil {
		return 0, apperr.Storage("insert webhook endpoint", err)
	}
	return res.LastInsertId()
}

func (r *WebhookRepository) Remove(ctx context.Context, id int64) error {
	res, err := r.db.Raw().ExecContext(ctx, `DELETE FROM webhook_endpoints WHERE id=?`, id)
	if err != nil {
		return apperr.Storage("delete webhook endpoint", err)
	}
	return requireAffected(res, "webhook endpoint")
}

func (r *WebhookRepository) FindAll(ctx context.Context) ([]*models.WebhookEndpoint, error) {
	rows, err := r.db.Raw().QueryContext(ctx, webhookSelect+` ORDER BY id`)
	if err != nil {
		return nil, apperr.Storage("list webhook endpoints", err)
	}
	defer rows.Close()

	var out []*models.WebhookEndpoint
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (r *WebhookRepository) FindEnabled(ctx context.Context) ([]*models.WebhookEndpoint, error) {
	rows, err := r.db.Raw().QueryContext(ctx, webhookSelect+` WHERE enabled=1 ORDER BY id`)
	if err != nil {
		return nil, apperr.Storage("list enabled webhook endpoints", err)
	}
	defer rows.Close()

	var out []*models.WebhookEndpoint
	for rows.Next() {
		w, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func scanWebhook(row rowScanner) (*models.WebhookEndpoint, error) {
	var w models.WebhookEndpoint
	var createdAt string
	err := row.Scan(&w.ID, &w.URL, &w.Enabled, &w.Secret, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("webhook endpoint not found")
	}
	if err != nil {
		return nil, apperr.Storage("scan webhook endpoint", err)
	}
	w.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, apperr.Storage("parse webhook created_at", err)
	}
	return &w, nil
}
