package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"social-service/internal/models"
)

// PushRepository stores browser push subscriptions.
type PushRepository interface {
	SaveSubscription(ctx context.Context, sub models.PushSubscription) error
	ListSubscriptions(ctx context.Context) ([]models.PushSubscription, error)
	DeleteSubscriptions(ctx context.Context, endpoints []string) (int64, error)
}

// PushRepo is a sqlx-backed repository on Postgres.
type PushRepo struct {
	db *sqlx.DB
}

// NewPushRepo constructs PushRepo.
func NewPushRepo(db *sqlx.DB) *PushRepo {
	return &PushRepo{db: db}
}

// SaveSubscription inserts a subscription or refreshes the keys of a known endpoint.
func (r *PushRepo) SaveSubscription(ctx context.Context, sub models.PushSubscription) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO push_subscriptions (endpoint, p256dh, auth, user_id)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (endpoint) DO UPDATE SET p256dh=EXCLUDED.p256dh, auth=EXCLUDED.auth, user_id=EXCLUDED.user_id`,
		sub.Endpoint, sub.P256dh, sub.Auth, sub.UserID)
	return err
}

// ListSubscriptions returns every registered subscription, oldest first.
func (r *PushRepo) ListSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	subs := []models.PushSubscription{}
	err := r.db.SelectContext(ctx, &subs, `SELECT endpoint, p256dh, auth, user_id, created_at FROM push_subscriptions ORDER BY created_at`)
	return subs, err
}

// DeleteSubscriptions drops the given endpoints.
func (r *PushRepo) DeleteSubscriptions(ctx context.Context, endpoints []string) (int64, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ANY($1)`, pq.Array(endpoints))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
