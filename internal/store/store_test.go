package store

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(posts []model.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.ID)
	}
	return out
}

func TestUpdateOneReplacesMatchingEntry(t *testing.T) {
	s := NewPostStore()
	s.ReplaceAll([]model.Post{{ID: "1", Likes: []string{}}})

	ok := s.UpdateOne(model.Post{ID: "1", Likes: []string{"u9"}})

	require.True(t, ok)
	assert.Equal(t, []model.Post{{ID: "1", Likes: []string{"u9"}}}, s.All())
}

func TestUpdateOneAbsentIsNoop(t *testing.T) {
	s := NewPostStore()
	s.ReplaceAll([]model.Post{{ID: "1", Title: "a"}, {ID: "2", Title: "b"}})
	before := s.All()
	version := s.Version()

	calls := 0
	unsub := s.Subscribe(func(Change) { calls++ })
	defer unsub()

	ok := s.UpdateOne(model.Post{ID: "404", Title: "ghost"})

	assert.False(t, ok)
	assert.Equal(t, before, s.All())
	assert.Equal(t, version, s.Version())
	assert.Zero(t, calls, "no-op must not notify")
}

func TestUpdateOnePreservesPosition(t *testing.T) {
	s := NewPostStore()
	s.ReplaceAll([]model.Post{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	s.UpdateOne(model.Post{ID: "b", Title: "edited"})

	all := s.All()
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))
	assert.Equal(t, "edited", all[1].Title)
}

func TestUpdateOneNeverDuplicates(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := NewPostStore()

	initial := make([]model.Post, 0, 10)
	for i := 0; i < 10; i++ {
		initial = append(initial, model.Post{ID: fmt.Sprint(i)})
	}
	s.ReplaceAll(initial)

	for i := 0; i < 1000; i++ {
		id := fmt.Sprint(rng.Intn(20))
		s.UpdateOne(model.Post{ID: id, Title: fmt.Sprint(i)})

		seen := map[string]bool{}
		for _, p := range s.All() {
			require.False(t, seen[p.ID], "duplicate id %s after %d updates", p.ID, i)
			seen[p.ID] = true
		}
		require.Equal(t, 10, s.Len())
	}
}

func TestReplaceAllCollapsesDuplicates(t *testing.T) {
	s := NewPostStore()
	s.ReplaceAll([]model.Post{{ID: "1", Title: "first"}, {ID: "2"}, {ID: "1", Title: "second"}})

	all := s.All()
	assert.Equal(t, []string{"1", "2"}, ids(all))
	assert.Equal(t, "first", all[0].Title)
}

func TestAllReturnsCopies(t *testing.T) {
	s := NewPostStore()
	s.ReplaceAll([]model.Post{{ID: "1", Likes: []string{"u1"}}})

	all := s.All()
	all[0].Likes[0] = "mutated"
	all[0].Title = "mutated"

	p, ok := s.Get("1")
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, p.Likes)
	assert.Empty(t, p.Title)
}

func TestRemove(t *testing.T) {
	s := NewPostStore()
	s.ReplaceAll([]model.Post{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	assert.True(t, s.Remove("b"))
	assert.False(t, s.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, ids(s.All()))

	s.UpdateOne(model.Post{ID: "c", Title: "still indexed"})
	p, ok := s.Get("c")
	require.True(t, ok)
	assert.Equal(t, "still indexed", p.Title)
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	s := NewPostStore()

	var changes []Change
	unsub := s.Subscribe(func(c Change) {
		// reading the store from inside a handler must not deadlock
		_ = s.All()
		changes = append(changes, c)
	})

	s.ReplaceAll([]model.Post{{ID: "1"}})
	s.UpdateOne(model.Post{ID: "1", Title: "t"})
	s.Remove("1")
	unsub()
	s.ReplaceAll(nil)

	require.Len(t, changes, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{changes[0].Version, changes[1].Version, changes[2].Version})
	assert.Equal(t, "t", changes[1].Posts[0].Title)
	assert.Empty(t, changes[2].Posts)
	assert.Equal(t, uint64(4), s.Version())
}
