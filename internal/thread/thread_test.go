package thread

import (
	"testing"

	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commentIDs(cs []model.Comment) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestPrependIsNewestFirst(t *testing.T) {
	th := New("p1", "")
	th.Replace([]model.Comment{{ID: "old"}})

	th.Prepend(model.Comment{ID: "c1"})
	th.Prepend(model.Comment{ID: "c2"})

	assert.Equal(t, []string{"c2", "c1", "old"}, commentIDs(th.Comments()))
	assert.Equal(t, model.CommentsRecent, th.Sort())
}

func TestRemoveAndUpdate(t *testing.T) {
	th := New("p1", model.CommentsLikes)
	th.Replace([]model.Comment{{ID: "a"}, {ID: "b"}, {ID: "c"}})

	assert.True(t, th.Remove("b"))
	assert.False(t, th.Remove("b"))
	assert.Equal(t, []string{"a", "c"}, commentIDs(th.Comments()))

	ok := th.Update("c", func(c model.Comment) model.Comment { return c.WithLike("u1", true) })
	require.True(t, ok)
	c, _ := th.Get("c")
	assert.Equal(t, []string{"u1"}, c.Likes)

	assert.False(t, th.Update("zzz", func(c model.Comment) model.Comment { return c }))
}

func TestCommentsAreCopies(t *testing.T) {
	th := New("p1", "")
	th.Replace([]model.Comment{{ID: "a", Likes: []string{"u1"}}})

	cs := th.Comments()
	cs[0].Likes[0] = "x"

	c, ok := th.Get("a")
	require.True(t, ok)
	assert.Equal(t, []string{"u1"}, c.Likes)
}
