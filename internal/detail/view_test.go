package detail

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bilyardvmetro/quill/internal/api"
	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/interact"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/notify"
	"github.com/bilyardvmetro/quill/internal/session"
	"github.com/bilyardvmetro/quill/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu           sync.Mutex
	post         *model.Post
	postErr      error
	comments     []model.Comment
	postCalls    int
	commentCalls []model.CommentSort
}

func (f *fakeSource) GetPost(ctx context.Context, id string) (*model.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postCalls++
	if f.postErr != nil {
		return nil, f.postErr
	}
	p := *f.post
	return &p, nil
}

func (f *fakeSource) ListComments(ctx context.Context, postID string, sort model.CommentSort) ([]model.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commentCalls = append(f.commentCalls, sort)
	return f.comments, nil
}

func (f *fakeSource) failPosts(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.postErr = err
}

func (f *fakeSource) PostCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.postCalls
}

func (f *fakeSource) CommentCalls() []model.CommentSort {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.CommentSort(nil), f.commentCalls...)
}

// mutations embeds the interface so tests only implement what they call.
type mutations struct {
	interact.API
	liked bool
}

func (m *mutations) ToggleLike(ctx context.Context, token string, target model.Target) (*model.LikeResult, error) {
	return &model.LikeResult{Liked: m.liked}, nil
}

func (m *mutations) UpdatePost(ctx context.Context, token, id string, upd api.PostUpdate) (*model.Post, error) {
	return &model.Post{ID: id, Title: *upd.Title}, nil
}

type fixture struct {
	src   *fakeSource
	posts *store.PostStore
	rec   *notify.Recorder
	eng   *interact.Engine
	view  *View
}

func newFixture(t *testing.T, postID string) *fixture {
	f := &fixture{
		src:   &fakeSource{},
		posts: store.NewPostStore(),
		rec:   &notify.Recorder{},
	}
	sess := session.NewHolder(&model.Session{Token: "tok", ID: "u1"})
	f.eng = interact.NewEngine(&mutations{liked: true}, f.posts, sess, f.rec, zerolog.Nop())
	f.view = New(postID, Deps{
		Source:   f.src,
		Posts:    f.posts,
		Engine:   f.eng,
		Sessions: sess,
		Notifier: f.rec,
		Log:      zerolog.Nop(),
	})
	t.Cleanup(f.view.Close)
	return f
}

func TestOpenFromStoreSkipsPostFetch(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "cached"}})
	f.src.comments = []model.Comment{{ID: "c1"}}

	snap := f.view.Open(context.Background())

	assert.Equal(t, Found, snap.State)
	require.NotNil(t, snap.Post)
	assert.Equal(t, "cached", snap.Post.Title)
	assert.Zero(t, f.src.PostCalls())
	assert.Equal(t, []model.CommentSort{model.CommentsRecent}, f.src.CommentCalls())
	assert.Len(t, snap.Comments, 1)
}

func TestOpenFetchesOnStoreMiss(t *testing.T) {
	f := newFixture(t, "p1")
	f.src.post = &model.Post{ID: "p1", Title: "remote"}

	snap := f.view.Open(context.Background())

	assert.Equal(t, Found, snap.State)
	assert.Equal(t, "remote", snap.Post.Title)
	assert.Equal(t, 1, f.src.PostCalls())
	assert.Len(t, f.src.CommentCalls(), 1)
}

func TestNotFoundIsTerminal(t *testing.T) {
	f := newFixture(t, "gone")
	f.src.postErr = &apperr.RequestError{Op: "get post", Status: 404, Err: apperr.ErrNotFound}

	snap := f.view.Open(context.Background())
	assert.Equal(t, NotFound, snap.State)
	assert.Nil(t, snap.Post)
	assert.Empty(t, f.rec.Messages(), "a missing post is rendered, not announced")

	f.view.Watch()
	f.posts.ReplaceAll([]model.Post{{ID: "other", Title: "x"}})
	f.view.Open(context.Background())

	assert.Equal(t, NotFound, f.view.State())
	assert.Equal(t, 1, f.src.PostCalls())
}

func TestNetworkFailureNotifies(t *testing.T) {
	f := newFixture(t, "p1")
	f.src.postErr = &apperr.RequestError{Op: "get post", Err: errors.New("connection refused")}

	snap := f.view.Open(context.Background())
	assert.Equal(t, NotFound, snap.State)
	m, ok := f.rec.Last()
	require.True(t, ok)
	assert.Equal(t, "Failed to load post or comments", m.Text)
}

func TestWatchReflectsStoreEdits(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "before"}, {ID: "p2", Title: "other"}})
	f.view.Open(context.Background())
	f.view.Watch()

	f.posts.UpdateOne(model.Post{ID: "p1", Title: "after"})

	snap := f.view.Snapshot()
	assert.Equal(t, "after", snap.Post.Title)
	assert.Zero(t, f.src.PostCalls())
}

func TestWatchRefetchesWhenPostLeavesStore(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "cached"}})
	f.src.post = &model.Post{ID: "p1", Title: "remote"}
	f.view.Open(context.Background())
	f.view.Watch()

	f.posts.ReplaceAll(nil)

	assert.Eventually(t, func() bool {
		snap := f.view.Snapshot()
		return snap.Post != nil && snap.Post.Title == "remote"
	}, time.Second, 5*time.Millisecond)
}

func TestWatchRefetchFailureKeepsPost(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "cached"}})
	f.view.Open(context.Background())
	f.view.Watch()

	f.src.failPosts(&apperr.RequestError{Op: "get post", Err: errors.New("connection refused")})
	f.posts.ReplaceAll([]model.Post{{ID: "p9", Title: "elsewhere"}})

	require.Eventually(t, func() bool { return f.src.PostCalls() == 1 && len(f.rec.Messages()) == 1 },
		time.Second, 5*time.Millisecond)
	f.view.Close()

	snap := f.view.Snapshot()
	assert.Equal(t, Found, snap.State)
	require.NotNil(t, snap.Post)
	assert.Equal(t, "cached", snap.Post.Title)
	m, _ := f.rec.Last()
	assert.Equal(t, notify.Message{Level: notify.LevelError, Text: "Failed to load post or comments"}, m)
}

func TestWatchRefetchNotFoundEndsView(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "cached"}})
	f.view.Open(context.Background())
	f.view.Watch()

	f.src.failPosts(&apperr.RequestError{Op: "get post", Status: 404, Err: apperr.ErrNotFound})
	f.posts.ReplaceAll(nil)

	assert.Eventually(t, func() bool { return f.view.State() == NotFound }, time.Second, 5*time.Millisecond)
	assert.Empty(t, f.rec.Messages())
}

func TestCloseRacingStoreChanges(t *testing.T) {
	f := newFixture(t, "p1")
	f.src.post = &model.Post{ID: "p1", Title: "remote"}
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "cached"}})
	f.view.Open(context.Background())
	f.view.Watch()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			f.posts.ReplaceAll(nil)
			f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "cached"}})
		}
	}()
	f.view.Close()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("store changes did not finish")
	}
	f.view.Close()
}

func TestCloseStopsWatching(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "before"}})
	f.view.Open(context.Background())
	f.view.Watch()
	f.view.Close()

	f.posts.UpdateOne(model.Post{ID: "p1", Title: "after"})
	assert.Equal(t, "before", f.view.Snapshot().Post.Title)
}

func TestSetCommentSortReloads(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "t"}})
	f.view.Open(context.Background())

	require.NoError(t, f.view.SetCommentSort(context.Background(), model.CommentsLikes))
	assert.Equal(t, []model.CommentSort{model.CommentsRecent, model.CommentsLikes}, f.src.CommentCalls())
	assert.Equal(t, model.CommentsLikes, f.view.Thread().Sort())
}

func TestLikePostThroughStore(t *testing.T) {
	f := newFixture(t, "p1")
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "t"}})
	f.view.Open(context.Background())
	f.view.Watch()

	liked, err := f.view.LikePost(context.Background())
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, []string{"u1"}, f.view.Snapshot().Post.Likes)

	stored, _ := f.posts.Get("p1")
	assert.Equal(t, []string{"u1"}, stored.Likes)
}

func TestLikePostOutsideStore(t *testing.T) {
	f := newFixture(t, "p1")
	f.src.post = &model.Post{ID: "p1", Title: "remote"}
	f.view.Open(context.Background())

	_, err := f.view.LikePost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, f.view.Snapshot().Post.Likes)
}

func TestEditTitle(t *testing.T) {
	f := newFixture(t, "p1")
	f.src.post = &model.Post{ID: "p1", Title: "old"}
	f.view.Open(context.Background())

	require.NoError(t, f.view.EditTitle(context.Background(), "new"))
	assert.Equal(t, "new", f.view.Snapshot().Post.Title)
}

type fakeStream []model.Comment

func (s fakeStream) StreamComments(ctx context.Context, postID string, fn func(model.Comment)) error {
	for _, c := range s {
		fn(c)
	}
	return nil
}

func TestFollowPrependsNewComments(t *testing.T) {
	f := newFixture(t, "p1")
	f.src.comments = []model.Comment{{ID: "c1"}}
	f.posts.ReplaceAll([]model.Post{{ID: "p1", Title: "t"}})
	f.view.Open(context.Background())

	require.NoError(t, f.view.Follow(context.Background(), fakeStream{{ID: "c2"}, {ID: "c1"}}))

	got := f.view.Thread().Comments()
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID)
}
