package server_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bilyardvmetro/quill/internal/api"
	"github.com/bilyardvmetro/quill/internal/apperr"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/repo"
	"github.com/bilyardvmetro/quill/internal/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type env struct {
	repo   *repo.MemRepo
	client *api.Client
	admin  *model.Session
	alice  *model.Session
	bob    *model.Session
}

func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	r := repo.NewMemRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("root-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, r.CreateUser(ctx, &repo.UserRecord{
		User:         model.User{ID: "admin", Name: "root", Email: "root@example.com", Role: model.RoleAdmin},
		PasswordHash: hash,
	}))

	srv := server.New(server.Options{Repo: r, Log: zerolog.Nop(), PageSize: 2})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	e := &env{repo: r, client: api.New(ts.URL + "/api")}

	e.admin, err = e.client.Login(ctx, "root@example.com", "root-pass")
	require.NoError(t, err)
	e.alice, err = e.client.Signup(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	e.bob, err = e.client.Signup(ctx, "bob", "bob@example.com", "secret2")
	require.NoError(t, err)
	return e
}

func (e *env) post(t *testing.T, token, title, category string) *model.Post {
	t.Helper()
	p, err := e.client.CreatePost(context.Background(), token, api.NewPost{
		Title: title, Description: "about " + title, Category: category,
	})
	require.NoError(t, err)
	return p
}

func TestAuth(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	assert.Equal(t, model.RoleAdmin, e.admin.Role)
	assert.Equal(t, "alice", e.alice.Name)
	assert.NotEmpty(t, e.alice.Token)

	_, err := e.client.Signup(ctx, "again", "ALICE@example.com", "secret1")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = e.client.Login(ctx, "alice@example.com", "wrong")
	require.Error(t, err)
	var reqErr *apperr.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)

	sess, err := e.client.Login(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, e.alice.ID, sess.ID)
}

func TestPostsLifecycle(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.client.AddCategory(ctx, e.alice.Token, "Travel")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	travel, err := e.client.AddCategory(ctx, e.admin.Token, "Travel")
	require.NoError(t, err)
	_, err = e.client.AddCategory(ctx, e.admin.Token, "Food")
	require.NoError(t, err)

	e.post(t, e.alice.Token, "first", "Travel")
	time.Sleep(2 * time.Millisecond)
	e.post(t, e.alice.Token, "second", travel.ID)
	time.Sleep(2 * time.Millisecond)
	third := e.post(t, e.bob.Token, "third", "food")

	page1, err := e.client.ListPosts(ctx, "all", 1)
	require.NoError(t, err)
	require.Len(t, page1, 2, "page size is two")
	assert.Equal(t, "third", page1[0].Title)
	page2, err := e.client.ListPosts(ctx, "all", 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "first", page2[0].Title)

	travelPosts, err := e.client.ListPosts(ctx, "travel", 1)
	require.NoError(t, err)
	assert.Len(t, travelPosts, 2)
	assert.Equal(t, "Travel", travelPosts[0].Category.Label)

	none, err := e.client.ListPosts(ctx, "unknown", 1)
	require.NoError(t, err)
	assert.Empty(t, none)

	title := "third, renamed"
	_, err = e.client.UpdatePost(ctx, e.alice.Token, third.ID, api.PostUpdate{Title: &title})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	renamed, err := e.client.UpdatePost(ctx, e.bob.Token, third.ID, api.PostUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, title, renamed.Title)

	require.NoError(t, e.client.DeletePost(ctx, e.admin.Token, third.ID))
	_, err = e.client.GetPost(ctx, third.ID)
	assert.True(t, api.IsNotFound(err))
}

func TestCreatePostValidation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.client.AddCategory(ctx, e.admin.Token, "Art")
	require.NoError(t, err)

	_, err = e.client.CreatePost(ctx, "", api.NewPost{Title: "t", Description: "d", Category: "Art"})
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	_, err = e.client.CreatePost(ctx, e.alice.Token, api.NewPost{Title: "t", Category: "Art"})
	var reqErr *apperr.RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)

	p, err := e.client.CreatePost(ctx, e.alice.Token, api.NewPost{
		Title: "pics", Description: "d", Category: "Art",
		Images: []api.Image{{Name: "a.png", Data: bytes.NewReader([]byte("png"))}},
	})
	require.NoError(t, err)
	require.Len(t, p.Images, 1)
	assert.Regexp(t, `^uploads/[0-9a-f-]{36}-a\.png$`, p.Images[0])
}

func TestCommentsAndLikes(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.client.AddCategory(ctx, e.admin.Token, "News")
	require.NoError(t, err)
	p := e.post(t, e.alice.Token, "hello", "News")

	_, err = e.client.ToggleLike(ctx, "", model.PostTarget(p.ID))
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)

	res, err := e.client.ToggleLike(ctx, e.bob.Token, model.PostTarget(p.ID))
	require.NoError(t, err)
	assert.True(t, res.Liked)
	require.NotNil(t, res.LikeCount)
	assert.Equal(t, 1, *res.LikeCount)

	first, err := e.client.AddComment(ctx, e.bob.Token, p.ID, "first!")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := e.client.AddComment(ctx, e.alice.Token, p.ID, "second")
	require.NoError(t, err)

	_, err = e.client.AddComment(ctx, e.alice.Token, p.ID, "   ")
	assert.Error(t, err)

	_, err = e.client.ToggleLike(ctx, e.alice.Token, model.CommentTarget(first.ID))
	require.NoError(t, err)

	recent, err := e.client.ListComments(ctx, p.ID, model.CommentsRecent)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)

	liked, err := e.client.ListComments(ctx, p.ID, model.CommentsLikes)
	require.NoError(t, err)
	assert.Equal(t, first.ID, liked[0].ID)

	got, err := e.client.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CommentCount(2), got.Comments)
	assert.Equal(t, []string{e.bob.ID}, got.Likes)

	assert.ErrorIs(t, e.client.DeleteComment(ctx, e.alice.Token, first.ID), apperr.ErrForbidden)
	require.NoError(t, e.client.DeleteComment(ctx, e.bob.Token, first.ID))
}

func TestReports(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.client.AddCategory(ctx, e.admin.Token, "Misc")
	require.NoError(t, err)
	p := e.post(t, e.alice.Token, "spam", "Misc")

	ack, err := e.client.ReportPost(ctx, e.bob.Token, p.ID, "")
	require.NoError(t, err)
	assert.False(t, ack.AlreadyReported)
	ack, err = e.client.ReportPost(ctx, e.bob.Token, p.ID, "again")
	require.NoError(t, err)
	assert.True(t, ack.AlreadyReported)

	_, err = e.client.ListReports(ctx, e.bob.Token)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	reports, err := e.client.ListReports(ctx, e.admin.Token)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, p.ID, reports[0].Post.ID)
	assert.Equal(t, []string{"Not performative"}, reports[0].Reasons)

	require.NoError(t, e.client.DismissReports(ctx, e.admin.Token, p.ID))
	reports, err = e.client.ListReports(ctx, e.admin.Token)
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestUsers(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	bio := "travels a lot"
	u, err := e.client.UpdateUser(ctx, e.alice.Token, e.alice.ID, api.UserUpdate{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, bio, u.Bio)

	_, err = e.client.UpdateUser(ctx, e.bob.Token, e.alice.ID, api.UserUpdate{Bio: &bio})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	long := "this bio is definitely longer than fifty characters"
	_, err = e.client.UpdateUser(ctx, e.alice.Token, e.alice.ID, api.UserUpdate{Bio: &long})
	assert.Error(t, err)

	public, err := e.client.GetUser(ctx, e.alice.ID)
	require.NoError(t, err)
	assert.Empty(t, public.Email)
	assert.Equal(t, bio, public.Bio)

	users, err := e.client.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 3)
}

func TestCommentStream(t *testing.T) {
	e := setup(t)
	_, err := e.client.AddCategory(context.Background(), e.admin.Token, "Live")
	require.NoError(t, err)
	p := e.post(t, e.alice.Token, "live", "Live")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []model.Comment
	)
	done := make(chan error, 1)
	go func() {
		done <- e.client.StreamComments(ctx, p.ID, func(c model.Comment) {
			mu.Lock()
			got = append(got, c)
			mu.Unlock()
		})
	}()

	// the subscription is registered asynchronously, so keep commenting
	// until one arrives
	require.Eventually(t, func() bool {
		if _, err := e.client.AddComment(context.Background(), e.bob.Token, p.ID, "ping"); err != nil {
			return false
		}
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, 3*time.Second, 50*time.Millisecond)

	mu.Lock()
	assert.Equal(t, "ping", got[0].Content)
	assert.Equal(t, p.ID, got[0].Post)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := server.New(server.Options{Repo: repo.NewMemRepo(), Log: zerolog.Nop(), CORSOrigins: "http://app.local"})

	req := httptest.NewRequest(http.MethodOptions, "/api/posts", nil)
	req.Header.Set("Origin", "http://app.local")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.local", rec.Header().Get("Access-Control-Allow-Origin"))
}
