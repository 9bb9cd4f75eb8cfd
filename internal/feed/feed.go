// Package feed keeps the shared post store in step with the list view's
// category and ordering selection.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/notify"
	"github.com/bilyardvmetro/quill/internal/store"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrStale is returned by Sync when a newer Sync started before this one's
// response arrived. The store is not touched.
var ErrStale = errors.New("stale post list discarded")

type Source interface {
	ListPosts(ctx context.Context, category string, page int) ([]model.Post, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
}

type Selection struct {
	Category string
	Mode     model.SortMode
}

// DefaultSelection is the list view's initial state: every category,
// ranked by engagement.
func DefaultSelection() Selection {
	return Selection{Category: model.AllCategories, Mode: model.SortPopularity}
}

type Synchronizer struct {
	src      Source
	posts    *store.PostStore
	notifier notify.Notifier
	log      zerolog.Logger

	gen atomic.Uint64

	mu  sync.Mutex
	sel Selection
}

func NewSynchronizer(src Source, posts *store.PostStore, n notify.Notifier, log zerolog.Logger) *Synchronizer {
	return &Synchronizer{
		src:      src,
		posts:    posts,
		notifier: n,
		log:      log.With().Str("component", "feed").Logger(),
		sel:      DefaultSelection(),
	}
}

// CategoryParam turns a list selector into the API's category parameter.
func CategoryParam(selector string) string {
	if selector == "" || strings.EqualFold(selector, model.AllCategories) {
		return "all"
	}
	return strings.ToLower(selector)
}

// Rank returns the view order for mode without modifying posts. Popularity
// sorts by descending score and keeps fetch order among equal scores.
func Rank(posts []model.Post, mode model.SortMode) []model.Post {
	out := append([]model.Post(nil), posts...)
	if mode == model.SortPopularity {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Score() > out[j].Score()
		})
	}
	return out
}

// Sync fetches page 1 for the category, ranks it and replaces the store.
func (s *Synchronizer) Sync(ctx context.Context, category string, mode model.SortMode) ([]model.Post, error) {
	gen := s.gen.Add(1)

	fetched, err := s.src.ListPosts(ctx, CategoryParam(category), 1)
	if err != nil {
		if gen == s.gen.Load() {
			notify.Error(s.notifier, "Failed to load posts")
		}
		s.log.Warn().Err(err).Str("category", category).Msg("post list fetch failed")
		return nil, fmt.Errorf("sync posts: %w", err)
	}

	ranked := Rank(fetched, mode)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen.Load() {
		s.log.Debug().Uint64("generation", gen).Str("category", category).Msg("discarding stale post list")
		return nil, ErrStale
	}
	s.posts.ReplaceAll(ranked)

	s.log.Debug().
		Str("category", category).
		Str("mode", string(mode)).
		Int("count", len(ranked)).
		Msg("post list synced")
	return ranked, nil
}

func (s *Synchronizer) Selection() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sel
}

// Mount syncs the current selection, as the list view does when it opens.
func (s *Synchronizer) Mount(ctx context.Context) ([]model.Post, error) {
	sel := s.Selection()
	return s.Sync(ctx, sel.Category, sel.Mode)
}

// SetCategory changes the selector and syncs when it actually changed.
func (s *Synchronizer) SetCategory(ctx context.Context, category string) ([]model.Post, error) {
	if category == "" {
		category = model.AllCategories
	}
	return s.reselect(ctx, func(sel *Selection) { sel.Category = category })
}

func (s *Synchronizer) SetMode(ctx context.Context, mode model.SortMode) ([]model.Post, error) {
	return s.reselect(ctx, func(sel *Selection) { sel.Mode = mode })
}

func (s *Synchronizer) reselect(ctx context.Context, apply func(*Selection)) ([]model.Post, error) {
	s.mu.Lock()
	prev := s.sel
	apply(&s.sel)
	sel := s.sel
	s.mu.Unlock()

	if sel == prev {
		return s.posts.All(), nil
	}
	return s.Sync(ctx, sel.Category, sel.Mode)
}

type CategoryCount struct {
	model.Category
	Count int
}

// TopCategories counts the first page of posts in every category and
// returns the n busiest. Ties keep category list order.
func (s *Synchronizer) TopCategories(ctx context.Context, n int) ([]CategoryCount, error) {
	cats, err := s.src.ListCategories(ctx)
	if err != nil {
		notify.Error(s.notifier, "Failed to load categories")
		return nil, fmt.Errorf("top categories: %w", err)
	}

	counts := make([]CategoryCount, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, cat := range cats {
		i, cat := i, cat
		g.Go(func() error {
			posts, err := s.src.ListPosts(gctx, CategoryParam(cat.Label), 1)
			if err != nil {
				return fmt.Errorf("count %q: %w", cat.Label, err)
			}
			counts[i] = CategoryCount{Category: cat, Count: len(posts)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		notify.Error(s.notifier, "Failed to load categories")
		return nil, fmt.Errorf("top categories: %w", err)
	}

	sort.SliceStable(counts, func(i, j int) bool { return counts[i].Count > counts[j].Count })
	if n >= 0 && n < len(counts) {
		counts = counts[:n]
	}
	return counts, nil
}

// ByAuthor returns the first page of posts written by userID. The shared
// store is left alone; the profile view keeps its own list.
func (s *Synchronizer) ByAuthor(ctx context.Context, userID string) ([]model.Post, error) {
	posts, err := s.src.ListPosts(ctx, "all", 1)
	if err != nil {
		notify.Error(s.notifier, "Failed to load posts")
		return nil, fmt.Errorf("posts by author: %w", err)
	}
	out := make([]model.Post, 0, len(posts))
	for _, p := range posts {
		if p.AuthorID() == userID {
			out = append(out, p)
		}
	}
	return out, nil
}
