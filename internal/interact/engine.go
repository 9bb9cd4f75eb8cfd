// Package interact applies user mutations (likes, comments, reports, title
// edits, deletions) to the backend and, once the backend confirms them, to
// the shared post store or the open comment thread.
//
// Local state changes only after a successful reply. There is no rollback
// path because nothing is written before the reply arrives.
package interact

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bilyardvmetro/quill/internal/api"
	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/notify"
	"github.com/bilyardvmetro/quill/internal/session"
	"github.com/bilyardvmetro/quill/internal/store"
	"github.com/bilyardvmetro/quill/internal/thread"
	"github.com/rs/zerolog"
)

const (
	DefaultReportReason = "Not performative"
	MaxImageBytes       = 3 << 20
	MaxBioLen           = 50
)

// API is the slice of the remote client the engine mutates through.
type API interface {
	ToggleLike(ctx context.Context, token string, target model.Target) (*model.LikeResult, error)
	ListComments(ctx context.Context, postID string, sort model.CommentSort) ([]model.Comment, error)
	AddComment(ctx context.Context, token, postID, content string) (*model.Comment, error)
	DeleteComment(ctx context.Context, token, commentID string) error
	UpdatePost(ctx context.Context, token, id string, upd api.PostUpdate) (*model.Post, error)
	DeletePost(ctx context.Context, token, id string) error
	CreatePost(ctx context.Context, token string, p api.NewPost) (*model.Post, error)
	ReportPost(ctx context.Context, token, postID, reason string) (*model.ReportAck, error)
	ListReports(ctx context.Context, token string) ([]model.Report, error)
	DismissReports(ctx context.Context, token, postID string) error
	UpdateUser(ctx context.Context, token, id string, upd api.UserUpdate) (*model.User, error)
}

type Engine struct {
	api      API
	posts    *store.PostStore
	sessions session.Provider
	notifier notify.Notifier
	log      zerolog.Logger
}

func NewEngine(client API, posts *store.PostStore, sessions session.Provider, n notify.Notifier, log zerolog.Logger) *Engine {
	return &Engine{
		api:      client,
		posts:    posts,
		sessions: sessions,
		notifier: n,
		log:      log.With().Str("component", "interact").Logger(),
	}
}

func (e *Engine) requireSession(msg string) (*model.Session, error) {
	sess := e.sessions.Current()
	if sess == nil {
		notify.Error(e.notifier, msg)
		return nil, apperr.ErrAuthRequired
	}
	return sess, nil
}

func (e *Engine) fail(msg string, err error) error {
	notify.Error(e.notifier, msg)
	e.log.Warn().Err(err).Msg(msg)
	return err
}

// LikeOutcome is what a confirmed toggle changed locally. Post is nil for
// comment targets and for posts not held by the store.
type LikeOutcome struct {
	Liked bool
	Post  *model.Post
}

// ToggleLike flips the session user's like on target. Comment targets need
// the thread they belong to; after the local update the thread is refetched
// in its current order and replaced wholesale.
func (e *Engine) ToggleLike(ctx context.Context, target model.Target, th *thread.Thread) (LikeOutcome, error) {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return LikeOutcome{}, err
	}
	if err := model.Validate(target); err != nil {
		return LikeOutcome{}, e.fail("Failed to toggle like", err)
	}

	res, err := e.api.ToggleLike(ctx, sess.Token, target)
	if err != nil {
		msg := "Failed to toggle like"
		if target.Type == model.TargetComment {
			msg = "Failed to like comment"
		}
		return LikeOutcome{}, e.fail(msg, fmt.Errorf("toggle like %s %s: %w", target.Type, target.ID, err))
	}

	out := LikeOutcome{Liked: res.Liked}
	switch target.Type {
	case model.TargetPost:
		if p, ok := e.posts.Get(target.ID); ok {
			updated := p.WithLike(sess.ID, res.Liked)
			e.posts.UpdateOne(updated)
			out.Post = &updated
		}
	case model.TargetComment:
		if th == nil {
			break
		}
		th.Update(target.ID, func(c model.Comment) model.Comment { return c.WithLike(sess.ID, res.Liked) })
		e.reloadThread(ctx, th, "Failed to like comment")
	}

	e.log.Debug().
		Str("target", target.ID).
		Str("type", string(target.Type)).
		Bool("liked", res.Liked).
		Msg("like toggled")
	return out, nil
}

// reloadThread replaces th with a fresh server copy. A failed refetch leaves
// the thread as it is.
func (e *Engine) reloadThread(ctx context.Context, th *thread.Thread, failMsg string) {
	comments, err := e.api.ListComments(ctx, th.PostID(), th.Sort())
	if err != nil {
		_ = e.fail(failMsg, fmt.Errorf("reload comments of %s: %w", th.PostID(), err))
		return
	}
	th.Replace(comments)
}

// AddComment posts text to the thread's post and puts the server's record at
// the top of the thread.
func (e *Engine) AddComment(ctx context.Context, th *thread.Thread, text string) (*model.Comment, error) {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		notify.Error(e.notifier, "Comment cannot be empty")
		return nil, apperr.Validation("content", "comment cannot be empty")
	}

	c, err := e.api.AddComment(ctx, sess.Token, th.PostID(), text)
	if err != nil {
		return nil, e.fail("Failed to add comment", fmt.Errorf("add comment: %w", err))
	}
	th.Prepend(*c)
	notify.Success(e.notifier, "Comment added!")
	return c, nil
}

func (e *Engine) DeleteComment(ctx context.Context, th *thread.Thread, commentID string) error {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return err
	}
	if err := e.api.DeleteComment(ctx, sess.Token, commentID); err != nil {
		return e.fail("Failed to delete comment", fmt.Errorf("delete comment %s: %w", commentID, err))
	}
	if th != nil {
		th.Remove(commentID)
	}
	notify.Success(e.notifier, "Comment deleted!")
	return nil
}

func (e *Engine) DeletePost(ctx context.Context, postID string) error {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return err
	}
	if err := e.api.DeletePost(ctx, sess.Token, postID); err != nil {
		return e.fail("Failed to delete post", fmt.Errorf("delete post %s: %w", postID, err))
	}
	e.posts.Remove(postID)
	notify.Success(e.notifier, "Post deleted")
	return nil
}

// EditTitle renames a post and writes the server's copy into the store.
func (e *Engine) EditTitle(ctx context.Context, postID, title string) (*model.Post, error) {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		notify.Error(e.notifier, "Title cannot be empty")
		return nil, apperr.Validation("title", "title cannot be empty")
	}

	p, err := e.api.UpdatePost(ctx, sess.Token, postID, api.PostUpdate{Title: &title})
	if err != nil {
		return nil, e.fail("Failed to update title", fmt.Errorf("update title of %s: %w", postID, err))
	}
	e.posts.UpdateOne(*p)
	notify.Success(e.notifier, "Title updated!")
	return p, nil
}

// ReportPost flags a post. A repeated report is not an error; the backend
// answers alreadyReported and the user is told so.
func (e *Engine) ReportPost(ctx context.Context, postID, reason string) (*model.ReportAck, error) {
	sess, err := e.requireSession("Login required to report")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = DefaultReportReason
	}

	ack, err := e.api.ReportPost(ctx, sess.Token, postID, reason)
	if err != nil {
		return nil, e.fail("Failed to report post", fmt.Errorf("report post %s: %w", postID, err))
	}
	if ack.AlreadyReported {
		notify.Info(e.notifier, "You already reported this post.")
	} else {
		notify.Success(e.notifier, "Post reported successfully!")
	}
	return ack, nil
}

type Attachment struct {
	Name string
	Data []byte
}

type Draft struct {
	Title       string
	Description string
	Category    string
	Images      []Attachment
}

// CreatePost uploads a new post. The store is not touched; the next list
// sync picks the post up.
func (e *Engine) CreatePost(ctx context.Context, d Draft) (*model.Post, error) {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return nil, err
	}
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	if d.Title == "" || d.Description == "" || d.Category == "" {
		notify.Error(e.notifier, "Please fill in all required fields")
		return nil, apperr.Validation("", "title, description and category are required")
	}

	images := make([]api.Image, 0, len(d.Images))
	for _, a := range d.Images {
		if len(a.Data) > MaxImageBytes {
			notify.Error(e.notifier, "Each image must be under 3MB")
			return nil, apperr.Validation("images", a.Name+" exceeds 3MB")
		}
		images = append(images, api.Image{Name: a.Name, Data: bytes.NewReader(a.Data)})
	}

	p, err := e.api.CreatePost(ctx, sess.Token, api.NewPost{
		Title:       d.Title,
		Description: d.Description,
		Category:    d.Category,
		Images:      images,
	})
	if err != nil {
		return nil, e.fail("Failed to create post", fmt.Errorf("create post: %w", err))
	}
	notify.Success(e.notifier, "Post created successfully!")
	return p, nil
}

// UpdateBio changes the signed-in user's profile bio.
func (e *Engine) UpdateBio(ctx context.Context, bio string) (*model.User, error) {
	sess, err := e.requireSession("Login required")
	if err != nil {
		return nil, err
	}
	if len([]rune(bio)) > MaxBioLen {
		notify.Error(e.notifier, "Bio cannot exceed 50 characters")
		return nil, apperr.Validation("bio", "bio cannot exceed 50 characters")
	}

	u, err := e.api.UpdateUser(ctx, sess.Token, sess.ID, api.UserUpdate{Bio: &bio})
	if err != nil {
		return nil, e.fail("Failed to update bio", fmt.Errorf("update bio: %w", err))
	}
	notify.Success(e.notifier, "Bio updated!")
	return u, nil
}
