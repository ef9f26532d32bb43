package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"social-service/internal/models"
	"social-service/internal/repositories"
	"social-service/internal/storage"
)

type GroupRepositoryMock struct {
	mock.Mock
}

func (m *GroupRepositoryMock) CreateGroup(ctx context.Context, ownerID int, ownerName string, in models.GroupInput) (models.Group, error) {
	args := m.Called(ctx, ownerID, ownerName, in)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) UpdateGroup(ctx context.Context, groupID int, in models.GroupInput) (models.Group, error) {
	args := m.Called(ctx, groupID, in)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) DeleteGroup(ctx context.Context, groupID int) error {
	args := m.Called(ctx, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	args := m.Called(ctx, groupID)
	var group models.Group
	if val := args.Get(0); val != nil {
		group = val.(models.Group)
	}
	return group, args.Error(1)
}

func (m *GroupRepositoryMock) ListGroups(ctx context.Context) ([]models.Group, error) {
	args := m.Called(ctx)
	var groups []models.Group
	if val := args.Get(0); val != nil {
		groups = val.([]models.Group)
	}
	return groups, args.Error(1)
}

func (m *GroupRepositoryMock) GetMembership(ctx context.Context, userID int, groupID int) (*models.Membership, error) {
	args := m.Called(ctx, userID, groupID)
	var membership *models.Membership
	if val := args.Get(0); val != nil {
		membership = val.(*models.Membership)
	}
	return membership, args.Error(1)
}

func (m *GroupRepositoryMock) ListUserMemberships(ctx context.Context, userID int) ([]models.UserMembership, error) {
	args := m.Called(ctx, userID)
	var list []models.UserMembership
	if val := args.Get(0); val != nil {
		list = val.([]models.UserMembership)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) ListPendingRequests(ctx context.Context, userID int) ([]models.PendingRequest, error) {
	args := m.Called(ctx, userID)
	var list []models.PendingRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.PendingRequest)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) ListMembers(ctx context.Context, groupID int) ([]models.Membership, error) {
	args := m.Called(ctx, groupID)
	var list []models.Membership
	if val := args.Get(0); val != nil {
		list = val.([]models.Membership)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) JoinGroup(ctx context.Context, userID int, username, avatar string, groupID int) (models.JoinResult, error) {
	args := m.Called(ctx, userID, username, avatar, groupID)
	var res models.JoinResult
	if val := args.Get(0); val != nil {
		res = val.(models.JoinResult)
	}
	return res, args.Error(1)
}

func (m *GroupRepositoryMock) LeaveGroup(ctx context.Context, userID int, groupID int) error {
	args := m.Called(ctx, userID, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) CancelJoinRequest(ctx context.Context, requestID int, userID int, groupID int) error {
	args := m.Called(ctx, requestID, userID, groupID)
	return args.Error(0)
}

func (m *GroupRepositoryMock) ListJoinRequests(ctx context.Context, groupID int, status string) ([]models.JoinRequest, error) {
	args := m.Called(ctx, groupID, status)
	var list []models.JoinRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.JoinRequest)
	}
	return list, args.Error(1)
}

func (m *GroupRepositoryMock) GetJoinRequest(ctx context.Context, requestID int) (models.JoinRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.JoinRequest
	if val := args.Get(0); val != nil {
		req = val.(models.JoinRequest)
	}
	return req, args.Error(1)
}

func (m *GroupRepositoryMock) ApproveJoinRequest(ctx context.Context, requestID int, reviewerID int) (models.Membership, error) {
	args := m.Called(ctx, requestID, reviewerID)
	var membership models.Membership
	if val := args.Get(0); val != nil {
		membership = val.(models.Membership)
	}
	return membership, args.Error(1)
}

func (m *GroupRepositoryMock) RejectJoinRequest(ctx context.Context, requestID int, reviewerID int) (models.JoinRequest, error) {
	args := m.Called(ctx, requestID, reviewerID)
	var req models.JoinRequest
	if val := args.Get(0); val != nil {
		req = val.(models.JoinRequest)
	}
	return req, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, in models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, in)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) CreateSystemMessage(ctx context.Context, groupID int, content string) (models.Message, error) {
	args := m.Called(ctx, groupID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, groupID int, q models.MessageQuery) ([]models.Message, error) {
	args := m.Called(ctx, groupID, q)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, groupID, messageID int) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) EditMessage(ctx context.Context, groupID, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, groupID, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) DeleteMessage(ctx context.Context, groupID, messageID int) error {
	args := m.Called(ctx, groupID, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) PurgeMessage(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) AnonymizeUser(ctx context.Context, userID, groupID int) (int64, error) {
	args := m.Called(ctx, userID, groupID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MessageRepositoryMock) CountMessages(ctx context.Context, groupID int, includeDeleted bool) (int, error) {
	args := m.Called(ctx, groupID, includeDeleted)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) ListUserMessages(ctx context.Context, userID, groupID, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, userID, groupID, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) SearchMessages(ctx context.Context, groupID int, term string, limit, offset int) ([]models.Message, error) {
	args := m.Called(ctx, groupID, term, limit, offset)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) RecentMessages(ctx context.Context, userID, limit int) ([]models.Message, error) {
	args := m.Called(ctx, userID, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) CleanupDeleted(ctx context.Context, olderThan time.Time) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

type PostRepositoryMock struct {
	mock.Mock
}

func (m *PostRepositoryMock) CreatePost(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *PostRepositoryMock) ListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	args := m.Called(ctx, limit, offset)
	var posts []models.Post
	if val := args.Get(0); val != nil {
		posts = val.([]models.Post)
	}
	return posts, args.Error(1)
}

func (m *PostRepositoryMock) GetPost(ctx context.Context, postID int) (models.Post, error) {
	args := m.Called(ctx, postID)
	var post models.Post
	if val := args.Get(0); val != nil {
		post = val.(models.Post)
	}
	return post, args.Error(1)
}

// UpdatePost runs mutate against the post given as the first return value,
// so tests observe the same mutation the real repository would save.
func (m *PostRepositoryMock) UpdatePost(ctx context.Context, postID int, mutate func(*models.Post) error) (models.Post, error) {
	args := m.Called(ctx, postID, mutate)
	if err := args.Error(1); err != nil {
		return models.Post{}, err
	}
	var post models.Post
	if val := args.Get(0); val != nil {
		post = val.(models.Post)
	}
	if err := mutate(&post); err != nil {
		return models.Post{}, err
	}
	return post, nil
}

func (m *PostRepositoryMock) DeletePost(ctx context.Context, postID int) error {
	args := m.Called(ctx, postID)
	return args.Error(0)
}

func (m *PostRepositoryMock) ProfilePicture(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *PostRepositoryMock) UpdateProfilePicture(ctx context.Context, username, picture string) error {
	args := m.Called(ctx, username, picture)
	return args.Error(0)
}

type PushRepositoryMock struct {
	mock.Mock
}

func (m *PushRepositoryMock) SaveSubscription(ctx context.Context, sub models.PushSubscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *PushRepositoryMock) ListSubscriptions(ctx context.Context) ([]models.PushSubscription, error) {
	args := m.Called(ctx)
	var subs []models.PushSubscription
	if val := args.Get(0); val != nil {
		subs = val.([]models.PushSubscription)
	}
	return subs, args.Error(1)
}

func (m *PushRepositoryMock) DeleteSubscriptions(ctx context.Context, endpoints []string) (int64, error) {
	args := m.Called(ctx, endpoints)
	return args.Get(0).(int64), args.Error(1)
}

type PushSenderMock struct {
	mock.Mock
}

func (m *PushSenderMock) Send(ctx context.Context, sub models.PushSubscription, payload []byte) error {
	args := m.Called(ctx, sub, payload)
	return args.Error(0)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, obj storage.Object) (string, error) {
	args := m.Called(ctx, obj)
	return args.String(0), args.Error(1)
}

func (m *UploaderMock) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	args := m.Called(ctx, key, contentType, expires)
	return args.String(0), args.Error(1)
}

var _ repositories.GroupRepository = (*GroupRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.PostRepository = (*PostRepositoryMock)(nil)
var _ repositories.PushRepository = (*PushRepositoryMock)(nil)
var _ storage.Uploader = (*UploaderMock)(nil)
