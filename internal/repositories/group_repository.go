package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"social-service/internal/models"
)

var (
	ErrGroupNotFound       = errors.New("group not found")
	ErrJoinRequestNotFound = errors.New("join request not found")
	ErrJoinRequestResolved = errors.New("join request already resolved")
)

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrNoSuchTable    = 1146
)

const (
	groupColumns   = "id, name, description, requires_approval, owner_id, avatar, created_at"
	memberColumns  = "user_id, group_id, username, role, status, joined_at"
	requestColumns = "id, group_id, user_id, username, avatar, status, reviewed_by, created_at, updated_at"
)

// GroupRepository abstracts group, membership and join request persistence.
type GroupRepository interface {
	CreateGroup(ctx context.Context, ownerID int, ownerName string, in models.GroupInput) (models.Group, error)
	UpdateGroup(ctx context.Context, groupID int, in models.GroupInput) (models.Group, error)
	DeleteGroup(ctx context.Context, groupID int) error
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListGroups(ctx context.Context) ([]models.Group, error)

	GetMembership(ctx context.Context, userID int, groupID int) (*models.Membership, error)
	ListUserMemberships(ctx context.Context, userID int) ([]models.UserMembership, error)
	ListPendingRequests(ctx context.Context, userID int) ([]models.PendingRequest, error)
	ListMembers(ctx context.Context, groupID int) ([]models.Membership, error)
	JoinGroup(ctx context.Context, userID int, username, avatar string, groupID int) (models.JoinResult, error)
	LeaveGroup(ctx context.Context, userID int, groupID int) error

	CancelJoinRequest(ctx context.Context, requestID int, userID int, groupID int) error
	ListJoinRequests(ctx context.Context, groupID int, status string) ([]models.JoinRequest, error)
	GetJoinRequest(ctx context.Context, requestID int) (models.JoinRequest, error)
	ApproveJoinRequest(ctx context.Context, requestID int, reviewerID int) (models.Membership, error)
	RejectJoinRequest(ctx context.Context, requestID int, reviewerID int) (models.JoinRequest, error)
}

// GroupRepo is a sqlx/MySQL implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup creates a group and makes the owner its admin atomically.
func (r *GroupRepo) CreateGroup(ctx context.Context, ownerID int, ownerName string, in models.GroupInput) (group models.Group, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, "INSERT INTO `groups` (name, description, requires_approval, owner_id, avatar) VALUES (?, ?, ?, ?, ?)",
		in.Name, in.Description, in.RequiresApproval, ownerID, in.Avatar)
	if err != nil {
		return models.Group{}, fmt.Errorf("insert group: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Group{}, err
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_memberships (user_id, group_id, username, role, status) VALUES (?, ?, ?, ?, ?)`,
		ownerID, id, ownerName, models.RoleAdmin, models.StatusActive); err != nil {
		return models.Group{}, fmt.Errorf("insert owner membership: %w", err)
	}

	if err = tx.GetContext(ctx, &group, "SELECT "+groupColumns+" FROM `groups` WHERE id=?", id); err != nil {
		return models.Group{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// UpdateGroup overwrites the mutable group fields.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID int, in models.GroupInput) (models.Group, error) {
	if _, err := r.db.ExecContext(ctx, "UPDATE `groups` SET name=?, description=?, requires_approval=?, avatar=? WHERE id=?",
		in.Name, in.Description, in.RequiresApproval, in.Avatar, groupID); err != nil {
		return models.Group{}, err
	}
	return r.GetGroup(ctx, groupID)
}

// DeleteGroup removes a group together with its memberships and join requests.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM group_memberships WHERE group_id=?`, groupID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM join_requests WHERE group_id=?`, groupID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM `groups` WHERE id=?", groupID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		err = ErrGroupNotFound
		return err
	}
	return tx.Commit()
}

// GetGroup fetches a single group.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, "SELECT "+groupColumns+" FROM `groups` WHERE id=?", groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	return group, err
}

// ListGroups returns all groups, newest first.
func (r *GroupRepo) ListGroups(ctx context.Context) ([]models.Group, error) {
	groups := []models.Group{}
	err := r.db.SelectContext(ctx, &groups, "SELECT "+groupColumns+" FROM `groups` ORDER BY created_at DESC, id DESC")
	return groups, err
}

// GetMembership returns the user's membership row, or nil when there is none.
func (r *GroupRepo) GetMembership(ctx context.Context, userID int, groupID int) (*models.Membership, error) {
	var m models.Membership
	err := r.db.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM group_memberships WHERE user_id=? AND group_id=?`, userID, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListUserMemberships returns the user's active memberships with group metadata.
func (r *GroupRepo) ListUserMemberships(ctx context.Context, userID int) ([]models.UserMembership, error) {
	memberships := []models.UserMembership{}
	err := r.db.SelectContext(ctx, &memberships,
		"SELECT gm.user_id, gm.group_id, gm.username, gm.role, gm.status, gm.joined_at, g.name AS group_name, g.avatar AS group_avatar "+
			"FROM group_memberships gm INNER JOIN `groups` g ON g.id = gm.group_id "+
			"WHERE gm.user_id=? AND gm.status=? ORDER BY gm.joined_at DESC", userID, models.StatusActive)
	return memberships, err
}

// ListPendingRequests returns the user's pending join requests with group
// metadata. A missing join_requests table yields an empty list.
func (r *GroupRepo) ListPendingRequests(ctx context.Context, userID int) ([]models.PendingRequest, error) {
	requests := []models.PendingRequest{}
	err := r.db.SelectContext(ctx, &requests,
		"SELECT jr.id, jr.group_id, jr.user_id, jr.username, jr.avatar, jr.status, jr.reviewed_by, jr.created_at, jr.updated_at, g.name AS group_name "+
			"FROM join_requests jr INNER JOIN `groups` g ON g.id = jr.group_id "+
			"WHERE jr.user_id=? AND jr.status=? ORDER BY jr.created_at DESC", userID, models.RequestPending)
	if isMySQLError(err, mysqlErrNoSuchTable) {
		return []models.PendingRequest{}, nil
	}
	return requests, err
}

// ListMembers returns every membership of a group, admins first.
func (r *GroupRepo) ListMembers(ctx context.Context, groupID int) ([]models.Membership, error) {
	members := []models.Membership{}
	err := r.db.SelectContext(ctx, &members,
		`SELECT `+memberColumns+` FROM group_memberships WHERE group_id=? ORDER BY FIELD(role, 'admin', 'moderator', 'member'), joined_at ASC`, groupID)
	return members, err
}

// JoinGroup is idempotent: an existing membership is returned unchanged.
// Groups that require approval get a pending membership and a join request.
func (r *GroupRepo) JoinGroup(ctx context.Context, userID int, username, avatar string, groupID int) (models.JoinResult, error) {
	existing, err := r.GetMembership(ctx, userID, groupID)
	if err != nil {
		return models.JoinResult{}, err
	}
	if existing != nil {
		return r.existingJoin(ctx, *existing)
	}

	group, err := r.GetGroup(ctx, groupID)
	if err != nil {
		return models.JoinResult{}, err
	}
	status := models.StatusActive
	if group.RequiresApproval {
		status = models.StatusPending
	}

	requestID, err := r.insertJoin(ctx, userID, username, avatar, groupID, status)
	if isMySQLError(err, mysqlErrDuplicateEntry) {
		// lost a race against a concurrent join for the same user
		existing, err = r.GetMembership(ctx, userID, groupID)
		if err != nil {
			return models.JoinResult{}, err
		}
		if existing == nil {
			return models.JoinResult{}, fmt.Errorf("membership vanished after duplicate insert")
		}
		return r.existingJoin(ctx, *existing)
	}
	if err != nil {
		return models.JoinResult{}, err
	}

	m, err := r.GetMembership(ctx, userID, groupID)
	if err != nil {
		return models.JoinResult{}, err
	}
	if m == nil {
		return models.JoinResult{}, fmt.Errorf("membership missing after insert")
	}
	return models.JoinResult{Membership: *m, RequestID: requestID}, nil
}

func (r *GroupRepo) insertJoin(ctx context.Context, userID int, username, avatar string, groupID int, status string) (requestID int, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO group_memberships (user_id, group_id, username, role, status) VALUES (?, ?, ?, ?, ?)`,
		userID, groupID, username, models.RoleMember, status); err != nil {
		return 0, err
	}

	if status == models.StatusPending {
		res, execErr := tx.ExecContext(ctx, `INSERT INTO join_requests (group_id, user_id, username, avatar, status) VALUES (?, ?, ?, ?, ?)`,
			groupID, userID, username, avatar, models.RequestPending)
		if execErr != nil {
			err = execErr
			return 0, err
		}
		id, idErr := res.LastInsertId()
		if idErr != nil {
			err = idErr
			return 0, err
		}
		requestID = int(id)
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return requestID, nil
}

func (r *GroupRepo) existingJoin(ctx context.Context, m models.Membership) (models.JoinResult, error) {
	result := models.JoinResult{Membership: m, Existing: true}
	if m.Status != models.StatusPending {
		return result, nil
	}
	var id int
	err := r.db.GetContext(ctx, &id, `SELECT id FROM join_requests WHERE group_id=? AND user_id=? AND status=? ORDER BY id DESC LIMIT 1`,
		m.GroupID, m.UserID, models.RequestPending)
	if err != nil && !errors.Is(err, sql.ErrNoRows) && !isMySQLError(err, mysqlErrNoSuchTable) {
		return models.JoinResult{}, err
	}
	result.RequestID = id
	return result, nil
}

// LeaveGroup deletes the membership row and withdraws any pending join
// request in the same transaction. It is a no-op when absent.
func (r *GroupRepo) LeaveGroup(ctx context.Context, userID int, groupID int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `DELETE FROM join_requests WHERE user_id=? AND group_id=? AND status=?`, userID, groupID, models.RequestPending)
	if err != nil && !isMySQLError(err, mysqlErrNoSuchTable) {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_memberships WHERE user_id=? AND group_id=?`, userID, groupID); err != nil {
		return err
	}
	return tx.Commit()
}

// CancelJoinRequest withdraws a pending request owned by userID and removes
// the pending membership of the request's group. A request that belongs to
// another group than groupID is reported as not found. Without a
// join_requests table only the pending membership is removed.
func (r *GroupRepo) CancelJoinRequest(ctx context.Context, requestID int, userID int, groupID int) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var requestGroupID int
	err = tx.GetContext(ctx, &requestGroupID, `SELECT group_id FROM join_requests WHERE id=? AND user_id=? AND status=? FOR UPDATE`,
		requestID, userID, models.RequestPending)
	fallback := isMySQLError(err, mysqlErrNoSuchTable)
	switch {
	case fallback:
		requestGroupID = groupID
	case errors.Is(err, sql.ErrNoRows):
		return ErrJoinRequestNotFound
	case err != nil:
		return err
	case requestGroupID != groupID:
		return ErrJoinRequestNotFound
	default:
		if _, err = tx.ExecContext(ctx, `DELETE FROM join_requests WHERE id=?`, requestID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM group_memberships WHERE user_id=? AND group_id=? AND status=?`, userID, requestGroupID, models.StatusPending)
	if err != nil {
		return err
	}
	if fallback {
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrJoinRequestNotFound
		}
	}
	return tx.Commit()
}

// ListJoinRequests returns a group's join requests, filtered by status when set.
func (r *GroupRepo) ListJoinRequests(ctx context.Context, groupID int, status string) ([]models.JoinRequest, error) {
	requests := []models.JoinRequest{}
	query := `SELECT ` + requestColumns + ` FROM join_requests WHERE group_id=?`
	args := []any{groupID}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &requests, query, args...)
	return requests, err
}

// GetJoinRequest fetches a single join request.
func (r *GroupRepo) GetJoinRequest(ctx context.Context, requestID int) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM join_requests WHERE id=?`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.JoinRequest{}, ErrJoinRequestNotFound
	}
	return req, err
}

// ApproveJoinRequest accepts a pending request and activates the membership
// in one transaction.
func (r *GroupRepo) ApproveJoinRequest(ctx context.Context, requestID int, reviewerID int) (m models.Membership, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Membership{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	req, err := lockPendingRequest(ctx, tx, requestID)
	if err != nil {
		return models.Membership{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE join_requests SET status=?, reviewed_by=? WHERE id=?`, models.RequestAccepted, reviewerID, requestID); err != nil {
		return models.Membership{}, err
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO group_memberships (user_id, group_id, username, role, status) VALUES (?, ?, ?, ?, ?) ON DUPLICATE KEY UPDATE status=VALUES(status)`,
		req.UserID, req.GroupID, req.Username, models.RoleMember, models.StatusActive); err != nil {
		return models.Membership{}, err
	}
	if err = tx.GetContext(ctx, &m, `SELECT `+memberColumns+` FROM group_memberships WHERE user_id=? AND group_id=?`, req.UserID, req.GroupID); err != nil {
		return models.Membership{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.Membership{}, err
	}
	return m, nil
}

// RejectJoinRequest declines a pending request and drops the pending membership.
func (r *GroupRepo) RejectJoinRequest(ctx context.Context, requestID int, reviewerID int) (req models.JoinRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.JoinRequest{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	req, err = lockPendingRequest(ctx, tx, requestID)
	if err != nil {
		return models.JoinRequest{}, err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE join_requests SET status=?, reviewed_by=? WHERE id=?`, models.RequestDeclined, reviewerID, requestID); err != nil {
		return models.JoinRequest{}, err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM group_memberships WHERE user_id=? AND group_id=? AND status=?`, req.UserID, req.GroupID, models.StatusPending); err != nil {
		return models.JoinRequest{}, err
	}
	if err = tx.Commit(); err != nil {
		return models.JoinRequest{}, err
	}
	req.Status = models.RequestDeclined
	req.ReviewedBy = &reviewerID
	return req, nil
}

func lockPendingRequest(ctx context.Context, tx *sqlx.Tx, requestID int) (models.JoinRequest, error) {
	var req models.JoinRequest
	err := tx.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM join_requests WHERE id=? FOR UPDATE`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.JoinRequest{}, ErrJoinRequestNotFound
	}
	if err != nil {
		return models.JoinRequest{}, err
	}
	if req.Status != models.RequestPending {
		return models.JoinRequest{}, ErrJoinRequestResolved
	}
	return req, nil
}

func isMySQLError(err error, number uint16) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
}
