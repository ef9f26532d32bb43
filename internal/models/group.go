package models

import "time"

// Membership roles.
const (
	RoleAdmin     = "admin"
	RoleModerator = "moderator"
	RoleMember    = "member"
)

// Membership statuses.
const (
	StatusActive  = "active"
	StatusPending = "pending"
)

// Join request statuses.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// Group represents a chat group.
type Group struct {
	ID               int       `db:"id" json:"id"`
	Name             string    `db:"name" json:"name"`
	Description      string    `db:"description" json:"description"`
	RequiresApproval bool      `db:"requires_approval" json:"requires_approval"`
	OwnerID          int       `db:"owner_id" json:"owner_id"`
	Avatar           string    `db:"avatar" json:"avatar"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// GroupInput carries the mutable group fields.
type GroupInput struct {
	Name             string `json:"name"`
	Description      string `json:"description"`
	RequiresApproval bool   `json:"requires_approval"`
	Avatar           string `json:"avatar"`
}

// Membership binds a user to a group with a role and status.
type Membership struct {
	UserID   int       `db:"user_id" json:"user_id"`
	GroupID  int       `db:"group_id" json:"group_id"`
	Username string    `db:"username" json:"username"`
	Role     string    `db:"role" json:"role"`
	Status   string    `db:"status" json:"status"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// IsActive reports whether the membership grants access to the group.
func (m *Membership) IsActive() bool {
	return m != nil && m.Status == StatusActive
}

// UserMembership is an active membership joined with its group.
type UserMembership struct {
	Membership
	GroupName   string `db:"group_name" json:"group_name"`
	GroupAvatar string `db:"group_avatar" json:"group_avatar"`
}

// JoinRequest is a pending application to join a group that requires approval.
type JoinRequest struct {
	ID         int       `db:"id" json:"id"`
	GroupID    int       `db:"group_id" json:"group_id"`
	UserID     int       `db:"user_id" json:"user_id"`
	Username   string    `db:"username" json:"username"`
	Avatar     string    `db:"avatar" json:"avatar"`
	Status     string    `db:"status" json:"status"`
	ReviewedBy *int      `db:"reviewed_by" json:"reviewed_by,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// PendingRequest is a user's pending join request joined with its group.
type PendingRequest struct {
	JoinRequest
	GroupName string `db:"group_name" json:"group_name"`
}

// JoinResult describes the outcome of a join attempt.
type JoinResult struct {
	Membership Membership `json:"membership"`
	RequestID  int        `json:"request_id,omitempty"`
	Existing   bool       `json:"existing"`
}

// RequiresApproval reports whether the join is waiting on a moderator.
func (r JoinResult) RequiresApproval() bool {
	return r.Membership.Status == StatusPending
}

// GroupEvent is emitted over WebSocket connections for groups.
type GroupEvent struct {
	Type      string   `json:"type"`
	Message   *Message `json:"message,omitempty"`
	MessageID int      `json:"message_id,omitempty"`
}
