package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-service/internal/models"
)

var messageCols = []string{"id", "group_id", "user_id", "username", "sender_role", "content", "image_url", "message_type", "reply_to", "edited", "edited_at", "deleted_at", "created_at"}

func setupPostgres(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return sqlx.NewDb(conn, "postgres"), mock
}

func TestListMessagesReturnsChronologicalPage(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(messageCols).
		AddRow(3, 9, 2, "bob", "member", "third", nil, "text", nil, false, nil, nil, base.Add(2*time.Minute)).
		AddRow(2, 9, 2, "bob", "member", "second", nil, "text", nil, false, nil, nil, base.Add(time.Minute)).
		AddRow(1, 9, nil, "System", "", "bob joined the group", nil, "system", nil, false, nil, nil, base)
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC, id DESC`)).
		WithArgs(9, sqlmock.AnyArg(), false, MaxMessageLimit, 0).
		WillReturnRows(rows)

	msgs, err := repo.ListMessages(context.Background(), 9, models.MessageQuery{Limit: 1000})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{msgs[0].ID, msgs[1].ID, msgs[2].ID})
	assert.Nil(t, msgs[0].UserID)
	assert.Equal(t, models.MessageSystem, msgs[0].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesDefaultsLimit(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)
	before := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages`)).
		WithArgs(9, sqlmock.AnyArg(), true, DefaultMessageLimit, 10).
		WillReturnRows(sqlmock.NewRows(messageCols))

	msgs, err := repo.ListMessages(context.Background(), 9, models.MessageQuery{Offset: 10, Before: &before, IncludeDeleted: true})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.NotNil(t, msgs)
}

func TestCreateSystemMessage(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages (group_id, user_id, username, content, message_type)`)).
		WithArgs(9, models.SystemUsername, "ann left the group", models.MessageSystem).
		WillReturnRows(sqlmock.NewRows(messageCols).AddRow(5, 9, nil, "System", "", "ann left the group", nil, "system", nil, false, nil, nil, now))

	msg, err := repo.CreateSystemMessage(context.Background(), 9, "ann left the group")
	require.NoError(t, err)
	assert.Equal(t, 5, msg.ID)
	assert.False(t, msg.SentBy(0))
}

func TestDeleteMessageAlreadyDeleted(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE messages SET deleted_at=NOW() WHERE id=$1 AND group_id=$2 AND deleted_at IS NULL`)).
		WithArgs(7, 9).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.ErrorIs(t, repo.DeleteMessage(context.Background(), 9, 7), ErrMessageNotFound)
}

func TestGetMessageMissing(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM messages WHERE id=$1 AND group_id=$2 AND deleted_at IS NULL`)).
		WithArgs(7, 9).
		WillReturnRows(sqlmock.NewRows(messageCols))

	_, err := repo.GetMessage(context.Background(), 9, 7)
	require.ErrorIs(t, err, ErrMessageNotFound)
}

func TestAnonymizeUser(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE messages SET username=$1 WHERE user_id=$2 AND group_id=$3`)).
		WithArgs(models.FormerMember, 2, 9).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.AnonymizeUser(context.Background(), 2, 9)
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)
}

func TestSearchMessagesEscapesWildcards(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`ILIKE $2`)).
		WithArgs(9, `%50\%\_off\_%`, 20, 0).
		WillReturnRows(sqlmock.NewRows(messageCols))

	_, err := repo.SearchMessages(context.Background(), 9, "50%_off_", 20, 0)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupDeleted(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)
	cutoff := time.Now().Add(-30 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM messages WHERE deleted_at IS NOT NULL AND deleted_at < $1`)).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.CleanupDeleted(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 12, n)
}

func TestCreateMessageRejectsEmptyBeforeInsert(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)

	_, err := repo.CreateMessage(context.Background(), models.NewMessage{GroupID: 9, UserID: 2, Content: "  \t ", ImageURL: " "})
	require.ErrorIs(t, err, models.ErrEmptyMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessageStoresTrimmedContent(t *testing.T) {
	db, mock := setupPostgres(t)
	repo := NewMessageRepo(db)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO messages`)).
		WithArgs(9, 2, "bob", models.RoleMember, "hello", nil, models.MessageText, nil).
		WillReturnRows(sqlmock.NewRows(messageCols).
			AddRow(5, 9, 2, "bob", "member", "hello", nil, "text", nil, false, nil, nil, now))

	msg, err := repo.CreateMessage(context.Background(), models.NewMessage{
		GroupID: 9, UserID: 2, Username: "bob", SenderRole: models.RoleMember, Content: "  hello ",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	require.NoError(t, mock.ExpectationsWereMet())
}
