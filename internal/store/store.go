// Package store is the process-wide post list shared by every view of the
// client. It is injected into consumers; there is no package level instance.
package store

import (
	"slices"
	"sync"

	"github.com/bilyardvmetro/quill/internal/model"
	"github.com/bilyardvmetro/quill/internal/pubsub"
)

const topic = "posts"

// Change is published after every effective mutation.
type Change struct {
	Version uint64
	Posts   []model.Post
}

type PostStore struct {
	mu      sync.RWMutex
	posts   []model.Post
	index   map[string]int
	version uint64
	bus     pubsub.Bus[Change]
}

func NewPostStore() *PostStore {
	return &PostStore{
		index: map[string]int{},
		bus:   pubsub.NewMemoryBus[Change](pubsub.Synchronous()),
	}
}

// All returns a copy of the posts in last fetch order.
func (s *PostStore) All() []model.Post {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePosts(s.posts)
}

func (s *PostStore) Get(id string) (model.Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return model.Post{}, false
	}
	return clonePost(s.posts[i]), true
}

func (s *PostStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posts)
}

// Version changes whenever the list does.
func (s *PostStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// ReplaceAll swaps the whole sequence. Repeated ids keep their first
// occurrence.
func (s *PostStore) ReplaceAll(posts []model.Post) {
	next := make([]model.Post, 0, len(posts))
	index := make(map[string]int, len(posts))
	for _, p := range posts {
		if _, dup := index[p.ID]; dup {
			continue
		}
		index[p.ID] = len(next)
		next = append(next, clonePost(p))
	}

	s.mu.Lock()
	s.posts = next
	s.index = index
	change := s.bumpLocked()
	s.mu.Unlock()

	s.bus.Publish(topic, change)
}

// UpdateOne replaces the entry with the same id in place. It reports false
// and leaves the store untouched when the id is absent.
func (s *PostStore) UpdateOne(post model.Post) bool {
	s.mu.Lock()
	i, ok := s.index[post.ID]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.posts[i] = clonePost(post)
	change := s.bumpLocked()
	s.mu.Unlock()

	s.bus.Publish(topic, change)
	return true
}

// Remove drops the entry with id, keeping the order of the rest.
func (s *PostStore) Remove(id string) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.posts = append(s.posts[:i:i], s.posts[i+1:]...)
	s.index = make(map[string]int, len(s.posts))
	for j, p := range s.posts {
		s.index[p.ID] = j
	}
	change := s.bumpLocked()
	s.mu.Unlock()

	s.bus.Publish(topic, change)
	return true
}

// Subscribe registers fn for every change. fn runs in the goroutine that
// made the change, after the store lock is released.
func (s *PostStore) Subscribe(fn func(Change)) pubsub.Unsubscribe {
	return s.bus.Subscribe(topic, fn)
}

func (s *PostStore) bumpLocked() Change {
	s.version++
	return Change{Version: s.version, Posts: clonePosts(s.posts)}
}

func clonePosts(in []model.Post) []model.Post {
	out := make([]model.Post, len(in))
	for i, p := range in {
		out[i] = clonePost(p)
	}
	return out
}

func clonePost(p model.Post) model.Post {
	p.Likes = slices.Clone(p.Likes)
	p.Images = slices.Clone(p.Images)
	if p.User != nil {
		u := *p.User
		p.User = &u
	}
	if p.Category != nil {
		c := *p.Category
		p.Category = &c
	}
	return p
}
