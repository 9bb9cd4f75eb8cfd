package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

type UserRef struct {
	ID   string `json:"_id" validate:"required"`
	Name string `json:"name"`
}

type CategoryRef struct {
	ID    string `json:"_id" validate:"required"`
	Label string `json:"label"`
}

// CommentCount decodes either a list of comment entries or a bare number.
type CommentCount int

func (c *CommentCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("comments: %w", err)
		}
		*c = CommentCount(len(items))
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("comments: %w", err)
	}
	*c = CommentCount(n)
	return nil
}

type Post struct {
	ID          string       `json:"_id" validate:"required"`
	Title       string       `json:"title" validate:"required"`
	Description string       `json:"description"`
	User        *UserRef     `json:"user,omitempty" validate:"omitempty"`
	Category    *CategoryRef `json:"category,omitempty" validate:"omitempty"`
	Images      []string     `json:"images,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	Likes       []string     `json:"likes"`
	Comments    CommentCount `json:"comments"`
}

// Score is the engagement rank used by the popularity view.
func (p Post) Score() int {
	return len(p.Likes) + int(p.Comments)
}

func (p Post) LikedBy(userID string) bool {
	return slices.Contains(p.Likes, userID)
}

func (p Post) AuthorID() string {
	if p.User == nil {
		return ""
	}
	return p.User.ID
}

// WithLike returns a copy whose liker list reflects liked for userID.
func (p Post) WithLike(userID string, liked bool) Post {
	p.Likes = toggleLiker(p.Likes, userID, liked)
	return p
}

type Comment struct {
	ID        string    `json:"_id" validate:"required"`
	Post      string    `json:"post"`
	User      *UserRef  `json:"user,omitempty" validate:"omitempty"`
	Content   string    `json:"content"`
	Likes     []string  `json:"likes"`
	CreatedAt time.Time `json:"createdAt"`
}

func (c Comment) WithLike(userID string, liked bool) Comment {
	c.Likes = toggleLiker(c.Likes, userID, liked)
	return c
}

func toggleLiker(likes []string, userID string, liked bool) []string {
	out := make([]string, 0, len(likes)+1)
	for _, id := range likes {
		if id != userID {
			out = append(out, id)
		}
	}
	if liked {
		out = append(out, userID)
	}
	return out
}

type Category struct {
	ID    string `json:"_id" validate:"required"`
	Label string `json:"label" validate:"required"`
}

type Report struct {
	Post    Post     `json:"post"`
	Count   int      `json:"count"`
	Reasons []string `json:"reasons,omitempty"`
}

type ReportAck struct {
	AlreadyReported bool   `json:"alreadyReported"`
	Message         string `json:"message,omitempty"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID    string `json:"_id" validate:"required"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Bio   string `json:"bio" validate:"max=50"`
	Role  string `json:"role,omitempty"`
}

type Session struct {
	Token     string    `json:"token" validate:"required"`
	ID        string    `json:"_id" validate:"required"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
}

func (s *Session) IsAdmin() bool { return s != nil && s.Role == RoleAdmin }

type TargetType string

const (
	TargetPost    TargetType = "Post"
	TargetComment TargetType = "Comment"
)

type Target struct {
	ID   string     `json:"targetId" validate:"required"`
	Type TargetType `json:"targetType" validate:"required,oneof=Post Comment"`
}

func PostTarget(id string) Target    { return Target{ID: id, Type: TargetPost} }
func CommentTarget(id string) Target { return Target{ID: id, Type: TargetComment} }

type LikeResult struct {
	Liked     bool `json:"liked"`
	LikeCount *int `json:"likeCount,omitempty"`
}

// SortMode orders the post list view.
type SortMode string

const (
	SortRecency    SortMode = "recency"
	SortPopularity SortMode = "popularity"
)

func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(s) {
	case SortRecency, SortPopularity:
		return SortMode(s), true
	case "recent":
		return SortRecency, true
	case "popular", "forYou":
		return SortPopularity, true
	}
	return "", false
}

// CommentSort orders a comment thread server side.
type CommentSort string

const (
	CommentsRecent CommentSort = "recent"
	CommentsLikes  CommentSort = "likes"
)

func ParseCommentSort(s string) (CommentSort, bool) {
	switch CommentSort(s) {
	case CommentsRecent, CommentsLikes:
		return CommentSort(s), true
	}
	return "", false
}

// AllCategories is the list selector that disables category filtering.
const AllCategories = "All"
