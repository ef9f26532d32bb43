package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, group_id, user_id, username, sender_role, content, image_url, message_type, reply_to, edited, edited_at, deleted_at, created_at`

// Default and maximum page sizes for group history.
const (
	DefaultMessageLimit = 50
	MaxMessageLimit     = 200
)

// MessageRepository defines interactions for group messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, in models.NewMessage) (models.Message, error)
	CreateSystemMessage(ctx context.Context, groupID int, content string) (models.Message, error)
	ListMessages(ctx context.Context, groupID int, q models.MessageQuery) ([]models.Message, error)
	GetMessage(ctx context.Context, groupID, messageID int) (models.Message, error)
	EditMessage(ctx context.Context, groupID, messageID int, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, groupID, messageID int) error
	PurgeMessage(ctx context.Context, messageID int) error
	AnonymizeUser(ctx context.Context, userID, groupID int) (int64, error)
	CountMessages(ctx context.Context, groupID int, includeDeleted bool) (int, error)
	ListUserMessages(ctx context.Context, userID, groupID, limit, offset int) ([]models.Message, error)
	SearchMessages(ctx context.Context, groupID int, term string, limit, offset int) ([]models.Message, error)
	RecentMessages(ctx context.Context, userID, limit int) ([]models.Message, error)
	CleanupDeleted(ctx context.Context, olderThan time.Time) (int64, error)
}

// MessageRepo is a sqlx-backed repository on Postgres.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage normalizes and stores a user-authored message.
func (r *MessageRepo) CreateMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	if err := in.Normalize(); err != nil {
		return models.Message{}, err
	}
	var image *string
	if in.ImageURL != "" {
		image = &in.ImageURL
	}
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (group_id, user_id, username, sender_role, content, image_url, message_type, reply_to)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING `+messageColumns,
		in.GroupID, in.UserID, in.Username, in.SenderRole, in.Content, image, models.MessageText, in.ReplyTo).
		StructScan(&msg)
	return msg, err
}

// CreateSystemMessage stores a message authored by the service itself.
func (r *MessageRepo) CreateSystemMessage(ctx context.Context, groupID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (group_id, user_id, username, content, message_type)
        VALUES ($1, NULL, $2, $3, $4) RETURNING `+messageColumns,
		groupID, models.SystemUsername, content, models.MessageSystem).
		StructScan(&msg)
	return msg, err
}

// ListMessages returns one page of history in chronological order. The page
// holds the newest Limit messages older than Before, after skipping Offset.
func (r *MessageRepo) ListMessages(ctx context.Context, groupID int, q models.MessageQuery) ([]models.Message, error) {
	limit, offset := clampPage(q.Limit, q.Offset)

	query := `SELECT ` + messageColumns + ` FROM messages
        WHERE group_id=$1
        AND ($2::timestamptz IS NULL OR created_at < $2)
        AND ($3 OR deleted_at IS NULL)
        ORDER BY created_at DESC, id DESC
        LIMIT $4 OFFSET $5`
	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, groupID, q.Before, q.IncludeDeleted, limit, offset); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// GetMessage retrieves a single live message of a group.
func (r *MessageRepo) GetMessage(ctx context.Context, groupID, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1 AND group_id=$2 AND deleted_at IS NULL`, messageID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// EditMessage replaces the content of a live message and marks it edited.
func (r *MessageRepo) EditMessage(ctx context.Context, groupID, messageID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$1, edited=TRUE, edited_at=NOW()
        WHERE id=$2 AND group_id=$3 AND deleted_at IS NULL RETURNING `+messageColumns,
		content, messageID, groupID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteMessage soft-deletes a message. Already deleted messages are reported as missing.
func (r *MessageRepo) DeleteMessage(ctx context.Context, groupID, messageID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET deleted_at=NOW() WHERE id=$1 AND group_id=$2 AND deleted_at IS NULL`, messageID, groupID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// PurgeMessage removes a message row permanently.
func (r *MessageRepo) PurgeMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// AnonymizeUser rewrites the author name of a user's messages in a group.
func (r *MessageRepo) AnonymizeUser(ctx context.Context, userID, groupID int) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET username=$1 WHERE user_id=$2 AND group_id=$3`, models.FormerMember, userID, groupID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountMessages returns the number of messages in a group.
func (r *MessageRepo) CountMessages(ctx context.Context, groupID int, includeDeleted bool) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM messages WHERE group_id=$1 AND ($2 OR deleted_at IS NULL)`, groupID, includeDeleted)
	return n, err
}

// ListUserMessages returns a user's live messages in a group, newest first.
func (r *MessageRepo) ListUserMessages(ctx context.Context, userID, groupID, limit, offset int) ([]models.Message, error) {
	limit, offset = clampPage(limit, offset)
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE user_id=$1 AND group_id=$2 AND deleted_at IS NULL
        ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, userID, groupID, limit, offset)
	return msgs, err
}

// SearchMessages returns live messages whose content or author contains term, newest first.
func (r *MessageRepo) SearchMessages(ctx context.Context, groupID int, term string, limit, offset int) ([]models.Message, error) {
	limit, offset = clampPage(limit, offset)
	pattern := "%" + likeEscaper.Replace(term) + "%"
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE group_id=$1 AND deleted_at IS NULL AND (content ILIKE $2 OR username ILIKE $2)
        ORDER BY created_at DESC, id DESC LIMIT $3 OFFSET $4`, groupID, pattern, limit, offset)
	return msgs, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// RecentMessages returns the latest live message of every group the user
// has written in, most recent group first.
func (r *MessageRepo) RecentMessages(ctx context.Context, userID, limit int) ([]models.Message, error) {
	limit, _ = clampPage(limit, 0)
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT * FROM (
            SELECT DISTINCT ON (group_id) `+messageColumns+` FROM messages
            WHERE deleted_at IS NULL AND group_id IN (SELECT DISTINCT group_id FROM messages WHERE user_id=$1)
            ORDER BY group_id, created_at DESC, id DESC
        ) latest ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	return msgs, err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	if limit > MaxMessageLimit {
		limit = MaxMessageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// CleanupDeleted permanently removes messages soft-deleted before olderThan.
func (r *MessageRepo) CleanupDeleted(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE deleted_at IS NOT NULL AND deleted_at < $1`, olderThan)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
