// Package thread holds the in-memory comment list of a single post. Comments
// are never kept in the shared post store.
package thread

import (
	"slices"
	"sync"

	"github.com/bilyardvmetro/quill/internal/model"
)

type Thread struct {
	mu       sync.RWMutex
	postID   string
	sort     model.CommentSort
	comments []model.Comment
}

func New(postID string, sort model.CommentSort) *Thread {
	if sort == "" {
		sort = model.CommentsRecent
	}
	return &Thread{postID: postID, sort: sort}
}

func (t *Thread) PostID() string { return t.postID }

func (t *Thread) Sort() model.CommentSort {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sort
}

func (t *Thread) SetSort(sort model.CommentSort) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sort = sort
}

func (t *Thread) Comments() []model.Comment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneComments(t.comments)
}

func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.comments)
}

func (t *Thread) Get(id string) (model.Comment, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, c := range t.comments {
		if c.ID == id {
			return cloneComment(c), true
		}
	}
	return model.Comment{}, false
}

// Replace swaps the whole thread for a fresh server copy.
func (t *Thread) Replace(comments []model.Comment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.comments = cloneComments(comments)
}

// Prepend puts c first regardless of the thread's sort order.
func (t *Thread) Prepend(c model.Comment) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.comments = append([]model.Comment{cloneComment(c)}, t.comments...)
}

func (t *Thread) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := slices.IndexFunc(t.comments, func(c model.Comment) bool { return c.ID == id })
	if i < 0 {
		return false
	}
	t.comments = slices.Delete(t.comments, i, i+1)
	return true
}

// Update applies fn to the comment with id and reports whether it existed.
func (t *Thread) Update(id string, fn func(model.Comment) model.Comment) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.comments {
		if c.ID == id {
			t.comments[i] = cloneComment(fn(cloneComment(c)))
			return true
		}
	}
	return false
}

func cloneComments(in []model.Comment) []model.Comment {
	out := make([]model.Comment, len(in))
	for i, c := range in {
		out[i] = cloneComment(c)
	}
	return out
}

func cloneComment(c model.Comment) model.Comment {
	c.Likes = slices.Clone(c.Likes)
	if c.User != nil {
		u := *c.User
		c.User = &u
	}
	return c
}
