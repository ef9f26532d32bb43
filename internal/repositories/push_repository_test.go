package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/models"
)

func TestSaveSubscriptionUpserts(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewPushRepo(db)
	userID := 7

	mock.ExpectExec(regexp.QuoteMeta(`ON CONFLICT (endpoint) DO UPDATE`)).
		WithArgs("https://push.example.com/a", "pk", "au", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveSubscription(context.Background(), models.PushSubscription{
		Endpoint: "https://push.example.com/a", P256dh: "pk", Auth: "au", UserID: &userID,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSubscriptions(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewPushRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "user_id", "created_at"}).
		AddRow("https://push.example.com/a", "pk", "au", nil, now).
		AddRow("https://push.example.com/b", "pk2", "au2", 3, now)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM push_subscriptions ORDER BY created_at`)).WillReturnRows(rows)

	subs, err := repo.ListSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Nil(t, subs[0].UserID)
	require.NotNil(t, subs[1].UserID)
	assert.Equal(t, 3, *subs[1].UserID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSubscriptions(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewPushRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM push_subscriptions WHERE endpoint = ANY($1)`)).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := repo.DeleteSubscriptions(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSubscriptionsEmptyIsNoop(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewPushRepo(db)

	removed, err := repo.DeleteSubscriptions(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, removed)
	require.NoError(t, mock.ExpectationsWereMet())
}
