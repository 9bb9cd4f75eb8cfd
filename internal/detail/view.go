// Package detail reconciles the single-post view with the shared post store
// and loads the post's comment thread.
package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/interact"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/notify"
	"github.com/bilyardvmetro/quill/internal/pubsub"
	"github.com/bilyardvmetro/quill/internal/session"
	"github.com/bilyardvmetro/quill/internal/store"
	"github.com/bilyardvmetro/quill/internal/thread"
	"github.com/rs/zerolog"
)

type State int

const (
	Loading State = iota
	Found
	NotFound
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Found:
		return "found"
	case NotFound:
		return "not found"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Source interface {
	GetPost(ctx context.Context, id string) (*model.Post, error)
	ListComments(ctx context.Context, postID string, sort model.CommentSort) ([]model.Comment, error)
}

// Streamer delivers comments created on a post while the view is open.
type Streamer interface {
	StreamComments(ctx context.Context, postID string, fn func(model.Comment)) error
}

type Deps struct {
	Source   Source
	Posts    *store.PostStore
	Engine   *interact.Engine
	Sessions session.Provider
	Notifier notify.Notifier
	Log      zerolog.Logger
}

type Snapshot struct {
	State    State
	Post     *model.Post
	Comments []model.Comment
}

type View struct {
	postID string
	d      Deps
	log    zerolog.Logger
	thread *thread.Thread

	mu    sync.Mutex
	state State
	post  *model.Post
	unsub pubsub.Unsubscribe

	// background refetches started by store changes; closed is guarded by mu
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(postID string, d Deps) *View {
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		postID: postID,
		d:      d,
		log:    d.Log.With().Str("component", "detail").Str("post", postID).Logger(),
		thread: thread.New(postID, model.CommentsRecent),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (v *View) PostID() string         { return v.postID }
func (v *View) Thread() *thread.Thread { return v.thread }

func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	s := Snapshot{State: v.state}
	if v.post != nil {
		p := *v.post
		s.Post = &p
	}
	v.mu.Unlock()
	s.Comments = v.thread.Comments()
	return s
}

// Open resolves the post and loads its comments. The comment fetch runs
// whatever the post resolution does.
func (v *View) Open(ctx context.Context) Snapshot {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		v.resolve(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = v.loadComments(ctx)
	}()
	wg.Wait()
	return v.Snapshot()
}

// resolve looks in the store first and falls back to the backend. Once the
// view is NotFound it stays there.
func (v *View) resolve(ctx context.Context) {
	if v.State() == NotFound {
		return
	}
	if p, ok := v.d.Posts.Get(v.postID); ok {
		v.setFound(p)
		return
	}
	v.fetch(ctx, false)
}

// fetch asks the backend for the post. A failed first resolution ends in
// NotFound. A background refetch only gives up the post on a 404; other
// failures keep what the view already shows.
func (v *View) fetch(ctx context.Context, background bool) {
	p, err := v.d.Source.GetPost(ctx, v.postID)
	if err == nil {
		v.setFound(*p)
		return
	}
	if background && ctx.Err() != nil {
		return
	}
	gone := errors.Is(err, apperr.ErrNotFound)
	if !gone {
		notify.Error(v.d.Notifier, "Failed to load post or comments")
	}
	if background && !gone {
		v.log.Warn().Err(err).Msg("post refetch failed")
		return
	}
	v.log.Debug().Err(err).Msg("post unavailable")
	v.mu.Lock()
	v.state = NotFound
	v.post = nil
	v.mu.Unlock()
}

func (v *View) setFound(p model.Post) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.state == NotFound {
		return
	}
	v.state = Found
	v.post = &p
}

func (v *View) loadComments(ctx context.Context) error {
	comments, err := v.d.Source.ListComments(ctx, v.postID, v.thread.Sort())
	if err != nil {
		notify.Error(v.d.Notifier, "Failed to load post or comments")
		v.log.Warn().Err(err).Msg("comment fetch failed")
		return fmt.Errorf("load comments: %w", err)
	}
	v.thread.Replace(comments)
	return nil
}

// Watch re-runs resolution on every store change until Close. A store hit is
// applied before the store's mutation returns; a miss refetches in the
// background.
func (v *View) Watch() pubsub.Unsubscribe {
	unsub := v.d.Posts.Subscribe(v.onChange)
	v.mu.Lock()
	if v.unsub != nil {
		v.unsub()
	}
	v.unsub = unsub
	v.mu.Unlock()
	return unsub
}

func (v *View) onChange(c store.Change) {
	if v.State() == NotFound {
		return
	}
	for _, p := range c.Posts {
		if p.ID == v.postID {
			v.setFound(p)
			return
		}
	}
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.wg.Add(1)
	v.mu.Unlock()
	go func() {
		defer v.wg.Done()
		v.fetch(v.ctx, true)
	}()
}

// Close drops the store subscription and waits for background refetches.
func (v *View) Close() {
	v.mu.Lock()
	v.closed = true
	unsub := v.unsub
	v.unsub = nil
	v.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	v.cancel()
	v.wg.Wait()
}

// SetCommentSort reloads the thread in the new order.
func (v *View) SetCommentSort(ctx context.Context, sort model.CommentSort) error {
	v.thread.SetSort(sort)
	return v.loadComments(ctx)
}

// Follow prepends comments pushed by the backend until ctx ends.
func (v *View) Follow(ctx context.Context, s Streamer) error {
	return s.StreamComments(ctx, v.postID, func(c model.Comment) {
		if _, seen := v.thread.Get(c.ID); seen {
			return
		}
		v.thread.Prepend(c)
	})
}

// LikePost toggles the like on the shown post. When the post is not in the
// store the view updates its own copy.
func (v *View) LikePost(ctx context.Context) (bool, error) {
	out, err := v.d.Engine.ToggleLike(ctx, model.PostTarget(v.postID), nil)
	if err != nil {
		return false, err
	}
	if out.Post != nil {
		v.setFound(*out.Post)
		return out.Liked, nil
	}
	if sess := v.d.Sessions.Current(); sess != nil {
		v.mu.Lock()
		if v.post != nil {
			p := v.post.WithLike(sess.ID, out.Liked)
			v.post = &p
		}
		v.mu.Unlock()
	}
	return out.Liked, nil
}

func (v *View) LikeComment(ctx context.Context, commentID string) (bool, error) {
	out, err := v.d.Engine.ToggleLike(ctx, model.CommentTarget(commentID), v.thread)
	return out.Liked, err
}

func (v *View) AddComment(ctx context.Context, text string) (*model.Comment, error) {
	return v.d.Engine.AddComment(ctx, v.thread, text)
}

func (v *View) DeleteComment(ctx context.Context, commentID string) error {
	return v.d.Engine.DeleteComment(ctx, v.thread, commentID)
}

func (v *View) EditTitle(ctx context.Context, title string) error {
	p, err := v.d.Engine.EditTitle(ctx, v.postID, title)
	if err != nil {
		return err
	}
	v.setFound(*p)
	return nil
}

// DeletePost removes the post. The view ends up NotFound.
func (v *View) DeletePost(ctx context.Context) error {
	if err := v.d.Engine.DeletePost(ctx, v.postID); err != nil {
		return err
	}
	v.mu.Lock()
	v.state = NotFound
	v.post = nil
	v.mu.Unlock()
	return nil
}
