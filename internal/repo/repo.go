// Package repo is the reference backend's storage layer: an in-memory
// implementation for development and tests and a Postgres one for STORE=pg.
package repo

import (
	"context"
	"time"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/model"
)

var (
	ErrNotFound = apperr.ErrNotFound
	ErrConflict = apperr.ErrConflict
)

// UserRecord is a user together with its credentials.
type UserRecord struct {
	model.User
	PasswordHash []byte
}

// PostRecord is what gets written on create. Likes and the comment count
// are derived on read.
type PostRecord struct {
	ID          string
	Title       string
	Description string
	UserID      string
	CategoryID  string
	Images      []string
	CreatedAt   time.Time
}

type CommentRecord struct {
	ID        string
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
}

type Repo interface {
	// Users
	CreateUser(ctx context.Context, u *UserRecord) error
	UserByEmail(ctx context.Context, email string) (*UserRecord, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, name, bio *string) (*model.User, error)

	// Tokens
	SaveToken(ctx context.Context, token, userID string, expires time.Time) error
	UserByToken(ctx context.Context, token string, now time.Time) (*model.User, error)

	// Categories
	ListCategories(ctx context.Context) ([]model.Category, error)
	CategoryByLabel(ctx context.Context, label string) (*model.Category, error)
	CreateCategory(ctx context.Context, c model.Category) error
	RenameCategory(ctx context.Context, id, label string) (*model.Category, error)
	DeleteCategory(ctx context.Context, id string) error

	// Posts
	CreatePost(ctx context.Context, p PostRecord) (*model.Post, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, categoryID string, offset, limit int) ([]model.Post, error)
	UpdatePost(ctx context.Context, id string, title, description *string) (*model.Post, error)
	DeletePost(ctx context.Context, id string) error

	// Comments
	CreateComment(ctx context.Context, c CommentRecord) (*model.Comment, error)
	GetComment(ctx context.Context, id string) (*model.Comment, error)
	ListComments(ctx context.Context, postID string, sort model.CommentSort) ([]model.Comment, error)
	DeleteComment(ctx context.Context, id string) error

	// Likes
	ToggleLike(ctx context.Context, userID string, target model.Target) (liked bool, count int, err error)

	// Reports
	AddReport(ctx context.Context, postID, userID, reason string) (alreadyReported bool, err error)
	ListReports(ctx context.Context) ([]model.Report, error)
	DismissReports(ctx context.Context, postID string) error
}
