package models

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissionsAdminSupersetOfMember(t *testing.T) {
	admin := PermissionsFor(&Membership{Role: RoleAdmin, Status: StatusActive})
	moderator := PermissionsFor(&Membership{Role: RoleModerator, Status: StatusActive})
	member := PermissionsFor(&Membership{Role: RoleMember, Status: StatusActive})

	assert.Subset(t, admin, moderator)
	assert.Subset(t, moderator, member)
	assert.Subset(t, admin, member)
	assert.Contains(t, admin, PermManage)
	assert.NotContains(t, moderator, PermManage)
}

func TestPermissionsIsPure(t *testing.T) {
	m := &Membership{Role: RoleAdmin, Status: StatusActive}
	first := PermissionsFor(m)
	first[0] = "mutated"

	assert.Equal(t, PermRead, PermissionsFor(m)[0])
}

func TestPermissionsWithoutActiveMembership(t *testing.T) {
	assert.Equal(t, []string{PermRead}, PermissionsFor(nil))
	assert.Equal(t, []string{PermRead}, PermissionsFor(&Membership{Role: RoleAdmin, Status: StatusPending}))
	assert.False(t, HasPermission(nil, PermWrite))
	assert.True(t, HasPermission(&Membership{Role: RoleModerator, Status: StatusActive}, PermDelete))
}

func TestNewMessageNormalize(t *testing.T) {
	in := NewMessage{Content: "  hello "}
	require.NoError(t, in.Normalize())
	assert.Equal(t, "hello", in.Content)

	empty := NewMessage{Content: "   "}
	require.ErrorIs(t, empty.Normalize(), ErrEmptyMessage)

	image := NewMessage{ImageURL: "https://cdn/x.png"}
	require.NoError(t, image.Normalize())
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
}

func TestApplyOpinionLikeToggles(t *testing.T) {
	p := &Post{}
	now := time.Now()

	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionLike, Username: "ann"}, now, sequentialIDs()))
	assert.Equal(t, 1, p.Likes)
	assert.True(t, p.LikedBy.Has("ann"))

	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionLike, Username: "ann"}, now, sequentialIDs()))
	assert.Equal(t, 0, p.Likes)
	assert.False(t, p.LikedBy.Has("ann"))
}

func TestApplyOpinionLikeAndDislikeAreExclusive(t *testing.T) {
	p := &Post{}
	now := time.Now()

	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionLike, Username: "ann"}, now, sequentialIDs()))
	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionDislike, Username: "ann"}, now, sequentialIDs()))

	assert.False(t, p.LikedBy.Has("ann"))
	assert.True(t, p.DislikedBy.Has("ann"))
	assert.Equal(t, 0, p.Likes)
	assert.Equal(t, 1, p.Dislikes)
}

func TestApplyOpinionCommentsRepliesAndHearts(t *testing.T) {
	p := &Post{}
	now := time.Now()
	ids := sequentialIDs()

	require.ErrorIs(t, p.ApplyOpinion(OpinionInput{Action: ActionComment, Username: "ann", Comment: " "}, now, ids), ErrEmptyComment)
	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionComment, Username: "ann", Comment: "nice"}, now, ids))
	require.Len(t, p.Comments, 1)
	commentID := p.Comments[0].CommentID
	assert.Equal(t, "id-1", commentID)

	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionHeartComment, Username: "bob", CommentID: commentID}, now, ids))
	assert.Equal(t, 1, p.Comments[0].Hearts)

	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionReply, Username: "bob", CommentID: commentID, Reply: "thanks"}, now, ids))
	require.Len(t, p.Comments[0].Replies, 1)
	replyID := p.Comments[0].Replies[0].ReplyID

	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionHeartReply, Username: "ann", CommentID: commentID, ReplyID: replyID}, now, ids))
	assert.Equal(t, 1, p.Comments[0].Replies[0].Hearts)
	require.NoError(t, p.ApplyOpinion(OpinionInput{Action: ActionHeartReply, Username: "ann", CommentID: commentID, ReplyID: replyID}, now, ids))
	assert.Equal(t, 0, p.Comments[0].Replies[0].Hearts)

	require.ErrorIs(t, p.ApplyOpinion(OpinionInput{Action: ActionReply, Username: "bob", CommentID: "missing", Reply: "x"}, now, ids), ErrCommentNotFound)
	require.ErrorIs(t, p.ApplyOpinion(OpinionInput{Action: ActionHeartReply, Username: "bob", CommentID: commentID, ReplyID: "missing"}, now, ids), ErrReplyNotFound)
	require.ErrorIs(t, p.ApplyOpinion(OpinionInput{Action: "share", Username: "bob"}, now, ids), ErrInvalidAction)
}

func TestStringSetScanAndValue(t *testing.T) {
	var s StringSet
	require.NoError(t, s.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, StringSet{"a", "b"}, s)

	v, err := StringSet(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var c Comments
	require.NoError(t, c.Scan(nil))
	assert.Nil(t, c)
	require.Error(t, c.Scan(42))
}

func TestMediaURL(t *testing.T) {
	url := "https://cdn/a.jpg"
	assert.Equal(t, url, *MediaURL(&url, "image/jpeg"))

	raw := "abc"
	assert.Equal(t, "data:video/mp4;base64,YWJj", *MediaURL(&raw, "video/mp4"))

	empty := ""
	assert.Nil(t, MediaURL(&empty, "image/jpeg"))
	assert.Nil(t, MediaURL(nil, "image/jpeg"))
}
