package integration

import (
	"context"
	"testing"
	"time"

	"github.com/bilyardvmetro/quill/internal/api"
	"github.com/bilyardvmetro/quill/internal/detail"
	"github.com/bilyardvmetro/quill/internal/feed"
	"github.com/bilyardvmetro/quill/internal/interact"
	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/notify"
	"github.com/bilyardvmetro/quill/internal/repo"
	"github.com/bilyardvmetro/quill/internal/session"
	"github.com/bilyardvmetro/quill/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCoreAgainstServer(t *testing.T) {
	r := repo.NewMemRepo()
	ctx := context.Background()
	require.NoError(t, r.CreateCategory(ctx, model.Category{ID: "cat-1", Label: "Travel"}))

	_, addr, stop := startTestServer(t, r)
	defer stop()

	client := api.New(addr + "/api")
	alice, err := client.Signup(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	bob, err := client.Signup(ctx, "bob", "bob@example.com", "secret2")
	require.NoError(t, err)

	rec := &notify.Recorder{}
	posts := store.NewPostStore()
	holder := session.NewHolder(alice)
	engine := interact.NewEngine(client, posts, holder, rec, zerolog.Nop())
	synchronizer := feed.NewSynchronizer(client, posts, rec, zerolog.Nop())

	_, err = engine.CreatePost(ctx, interact.Draft{Title: "quiet", Description: "d", Category: "Travel"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	loud, err := engine.CreatePost(ctx, interact.Draft{Title: "loud", Description: "d", Category: "Travel"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	popular, err := engine.CreatePost(ctx, interact.Draft{Title: "popular", Description: "d", Category: "Travel"})
	require.NoError(t, err)
	assert.Zero(t, posts.Len(), "created posts wait for the next sync")

	_, err = client.ToggleLike(ctx, bob.Token, model.PostTarget(popular.ID))
	require.NoError(t, err)
	_, err = client.AddComment(ctx, bob.Token, popular.ID, "nice")
	require.NoError(t, err)
	_, err = client.ToggleLike(ctx, bob.Token, model.PostTarget(loud.ID))
	require.NoError(t, err)

	ranked, err := synchronizer.Mount(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"popular", "loud", "quiet"}, titles(ranked))

	_, err = synchronizer.SetCategory(ctx, "travel")
	require.NoError(t, err)
	assert.Equal(t, 3, posts.Len())

	view := detail.New(popular.ID, detail.Deps{
		Source: client, Posts: posts, Engine: engine, Sessions: holder, Notifier: rec, Log: zerolog.Nop(),
	})
	defer view.Close()
	view.Watch()

	snap := view.Open(ctx)
	require.Equal(t, detail.Found, snap.State)
	require.Len(t, snap.Comments, 1)

	liked, err := view.LikePost(ctx)
	require.NoError(t, err)
	assert.True(t, liked)
	stored, _ := posts.Get(popular.ID)
	assert.ElementsMatch(t, []string{bob.ID, alice.ID}, stored.Likes)

	_, err = view.AddComment(ctx, "thanks")
	require.NoError(t, err)
	assert.Equal(t, "thanks", view.Snapshot().Comments[0].Content)

	require.NoError(t, view.EditTitle(ctx, "popular indeed"))
	stored, _ = posts.Get(popular.ID)
	assert.Equal(t, "popular indeed", stored.Title)

	require.NoError(t, view.DeletePost(ctx))
	assert.Equal(t, detail.NotFound, view.State())
	_, ok := posts.Get(popular.ID)
	assert.False(t, ok)
}

func titles(posts []model.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}
