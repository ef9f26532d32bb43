package models

import (
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Opinion actions accepted on a post.
const (
	ActionLike         = "like"
	ActionDislike      = "dislike"
	ActionComment      = "comment"
	ActionReply        = "reply"
	ActionHeartComment = "heart comment"
	ActionHeartReply   = "heart reply"
)

var (
	ErrInvalidAction   = errors.New("invalid action type")
	ErrEmptyComment    = errors.New("comment cannot be empty")
	ErrEmptyReply      = errors.New("reply cannot be empty")
	ErrCommentNotFound = errors.New("comment not found")
	ErrReplyNotFound   = errors.New("reply not found")
)

// StringSet is an ordered set of usernames stored as a JSON array.
type StringSet []string

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// Add appends v unless already present.
func (s *StringSet) Add(v string) {
	if !s.Has(v) {
		*s = append(*s, v)
	}
}

// Remove drops v from the set.
func (s *StringSet) Remove(v string) {
	out := (*s)[:0]
	for _, x := range *s {
		if x != v {
			out = append(out, x)
		}
	}
	*s = out
}

// Toggle adds v if absent or removes it if present. It returns true when v was added.
func (s *StringSet) Toggle(v string) bool {
	if s.Has(v) {
		s.Remove(v)
		return false
	}
	s.Add(v)
	return true
}

func (s StringSet) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(s))
	return string(b), err
}

func (s *StringSet) Scan(src any) error {
	var items []string
	if err := scanJSON(src, &items); err != nil {
		return fmt.Errorf("scan string set: %w", err)
	}
	*s = items
	return nil
}

// Reply is a response to a comment.
type Reply struct {
	ReplyID   string    `json:"replyId"`
	Username  string    `json:"username"`
	Reply     string    `json:"reply"`
	Timestamp time.Time `json:"timestamp"`
	Hearts    int       `json:"hearts"`
	HeartedBy StringSet `json:"heartedBy"`
}

// Comment is a top-level comment on a post.
type Comment struct {
	CommentID string    `json:"commentId"`
	Username  string    `json:"username"`
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
	Hearts    int       `json:"hearts"`
	HeartedBy StringSet `json:"heartedBy"`
	Replies   []Reply   `json:"replies"`
}

// Comments is the JSON-encoded comment thread of a post.
type Comments []Comment

func (c Comments) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]Comment(c))
	return string(b), err
}

func (c *Comments) Scan(src any) error {
	var items []Comment
	if err := scanJSON(src, &items); err != nil {
		return fmt.Errorf("scan comments: %w", err)
	}
	*c = items
	return nil
}

func scanJSON(src any, dst any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// Post is a feed entry stored in the MySQL posts table.
type Post struct {
	ID             int       `gorm:"column:_id;primaryKey;autoIncrement" json:"_id"`
	Title          string    `gorm:"column:title" json:"title,omitempty"`
	Subject        string    `gorm:"column:subject" json:"subject,omitempty"`
	Message        string    `gorm:"column:message" json:"message"`
	Timestamp      time.Time `gorm:"column:timestamp" json:"timestamp"`
	Username       string    `gorm:"column:username" json:"username"`
	SessionID      string    `gorm:"column:sessionId" json:"sessionId"`
	Likes          int       `gorm:"column:likes" json:"likes"`
	Dislikes       int       `gorm:"column:dislikes" json:"dislikes"`
	LikedBy        StringSet `gorm:"column:likedBy;type:text" json:"likedBy"`
	DislikedBy     StringSet `gorm:"column:dislikedBy;type:text" json:"dislikedBy"`
	Comments       Comments  `gorm:"column:comments;type:longtext" json:"comments"`
	Photo          *string   `gorm:"column:photo;type:longtext" json:"photo"`
	Video          *string   `gorm:"column:video;type:longtext" json:"video"`
	ProfilePicture *string   `gorm:"column:profile_picture" json:"profilePicture,omitempty"`
}

// TableName pins the gorm table name.
func (Post) TableName() string { return "posts" }

// HasContent reports whether the post carries any displayable content.
func (p *Post) HasContent() bool {
	return strings.TrimSpace(p.Title) != "" || strings.TrimSpace(p.Subject) != "" ||
		strings.TrimSpace(p.Message) != "" || p.Photo != nil || p.Video != nil
}

// OpinionInput is one like/dislike/comment/reply/heart action on a post.
type OpinionInput struct {
	Action    string
	Username  string
	Comment   string
	Reply     string
	CommentID string
	ReplyID   string
}

// ApplyOpinion mutates the post for the given action. Likes and dislikes
// toggle, and a user is never in both likedBy and dislikedBy. newID supplies
// identifiers for new comments and replies.
func (p *Post) ApplyOpinion(in OpinionInput, now time.Time, newID func() string) error {
	switch in.Action {
	case ActionLike:
		p.DislikedBy.Remove(in.Username)
		p.LikedBy.Toggle(in.Username)
	case ActionDislike:
		p.LikedBy.Remove(in.Username)
		p.DislikedBy.Toggle(in.Username)
	case ActionComment:
		if strings.TrimSpace(in.Comment) == "" {
			return ErrEmptyComment
		}
		id := in.CommentID
		if id == "" {
			id = newID()
		}
		p.Comments = append(p.Comments, Comment{
			CommentID: id,
			Username:  in.Username,
			Comment:   in.Comment,
			Timestamp: now,
			HeartedBy: StringSet{},
			Replies:   []Reply{},
		})
	case ActionReply:
		if strings.TrimSpace(in.Reply) == "" {
			return ErrEmptyReply
		}
		c := p.findComment(in.CommentID)
		if c == nil {
			return ErrCommentNotFound
		}
		c.Replies = append(c.Replies, Reply{
			ReplyID:   newID(),
			Username:  in.Username,
			Reply:     in.Reply,
			Timestamp: now,
			HeartedBy: StringSet{},
		})
	case ActionHeartComment:
		c := p.findComment(in.CommentID)
		if c == nil {
			return ErrCommentNotFound
		}
		c.HeartedBy.Toggle(in.Username)
		c.Hearts = len(c.HeartedBy)
	case ActionHeartReply:
		c := p.findComment(in.CommentID)
		if c == nil {
			return ErrCommentNotFound
		}
		r := c.findReply(in.ReplyID)
		if r == nil {
			return ErrReplyNotFound
		}
		r.HeartedBy.Toggle(in.Username)
		r.Hearts = len(r.HeartedBy)
	default:
		return ErrInvalidAction
	}
	p.Likes = len(p.LikedBy)
	p.Dislikes = len(p.DislikedBy)
	return nil
}

func (p *Post) findComment(id string) *Comment {
	for i := range p.Comments {
		if p.Comments[i].CommentID == id {
			return &p.Comments[i]
		}
	}
	return nil
}

func (c *Comment) findReply(id string) *Reply {
	for i := range c.Replies {
		if c.Replies[i].ReplyID == id {
			return &c.Replies[i]
		}
	}
	return nil
}

// MediaURL returns raw unchanged when it is already a URL or data URI and
// otherwise wraps the stored bytes into a base64 data URI of the given mime type.
func MediaURL(raw *string, mime string) *string {
	if raw == nil || *raw == "" {
		return nil
	}
	v := *raw
	if strings.HasPrefix(v, "http") || strings.HasPrefix(v, "data:") {
		return &v
	}
	uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString([]byte(v))
	return &uri
}

// PushSubscription is a browser push endpoint registered by a client.
type PushSubscription struct {
	Endpoint  string    `db:"endpoint" json:"endpoint"`
	P256dh    string    `db:"p256dh" json:"p256dh"`
	Auth      string    `db:"auth" json:"auth"`
	UserID    *int      `db:"user_id" json:"user_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FeedEvent is broadcast to feed websocket clients.
type FeedEvent struct {
	Type string `json:"type"`
	Post *Post  `json:"post,omitempty"`
	ID   int    `json:"id,omitempty"`
}
