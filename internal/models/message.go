package models

import (
	"errors"
	"strings"
	"time"
)

// Message types.
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// SystemUsername is the display name of system messages.
const SystemUsername = "System"

// FormerMember replaces the username on messages of users who left.
const FormerMember = "Former Member"

var ErrEmptyMessage = errors.New("message must have content or an image")

// Message represents a message sent in a group.
type Message struct {
	ID         int        `db:"id" json:"id"`
	GroupID    int        `db:"group_id" json:"group_id"`
	UserID     *int       `db:"user_id" json:"user_id"`
	Username   string     `db:"username" json:"username"`
	SenderRole string     `db:"sender_role" json:"sender_role,omitempty"`
	Content    string     `db:"content" json:"content"`
	ImageURL   *string    `db:"image_url" json:"image_url,omitempty"`
	Type       string     `db:"message_type" json:"type"`
	ReplyTo    *int       `db:"reply_to" json:"reply_to,omitempty"`
	Edited     bool       `db:"edited" json:"edited"`
	EditedAt   *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	DeletedAt  *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"timestamp"`
}

// SentBy reports whether userID authored the message.
func (m Message) SentBy(userID int) bool {
	return m.UserID != nil && *m.UserID == userID
}

// NewMessage is the input for a user-authored message.
type NewMessage struct {
	GroupID    int
	UserID     int
	Username   string
	SenderRole string
	Content    string
	ImageURL   string
	ReplyTo    *int
}

// Normalize trims the content and validates that something is being sent.
func (n *NewMessage) Normalize() error {
	n.Content = strings.TrimSpace(n.Content)
	n.ImageURL = strings.TrimSpace(n.ImageURL)
	if n.Content == "" && n.ImageURL == "" {
		return ErrEmptyMessage
	}
	return nil
}

// MessageQuery controls pagination of a group's messages.
type MessageQuery struct {
	Limit          int
	Offset         int
	Before         *time.Time
	IncludeDeleted bool
}
