package repo

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bilyardvmetro/quill/internal/model"
)

type tokenRow struct {
	userID  string
	expires time.Time
}

type postRow struct {
	PostRecord
	seq uint64
}

type commentRow struct {
	CommentRecord
	seq uint64
}

type reportRow struct {
	userID string
	reason string
}

type MemRepo struct {
	mu  sync.RWMutex
	seq uint64

	users      map[string]*UserRecord
	emails     map[string]string
	tokens     map[string]tokenRow
	categories []model.Category
	posts      map[string]*postRow
	comments   map[string]*commentRow
	// liker ids per target in like order
	likes   map[string][]string
	reports map[string][]reportRow
}

func NewMemRepo() *MemRepo {
	return &MemRepo{
		users:    map[string]*UserRecord{},
		emails:   map[string]string{},
		tokens:   map[string]tokenRow{},
		posts:    map[string]*postRow{},
		comments: map[string]*commentRow{},
		likes:    map[string][]string{},
		reports:  map[string][]reportRow{},
	}
}

func (m *MemRepo) next() uint64 {
	m.seq++
	return m.seq
}

func (m *MemRepo) CreateUser(ctx context.Context, u *UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, taken := m.emails[email]; taken {
		return ErrConflict
	}
	cp := *u
	m.users[u.ID] = &cp
	m.emails[email] = u.ID
	return nil
}

func (m *MemRepo) UserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.emails[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemRepo) GetUser(ctx context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u.User
	return &cp, nil
}

func (m *MemRepo) ListUsers(ctx context.Context) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u.User)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemRepo) UpdateUser(ctx context.Context, id string, name, bio *string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	if name != nil {
		u.Name = *name
	}
	if bio != nil {
		u.Bio = *bio
	}
	cp := u.User
	return &cp, nil
}

func (m *MemRepo) SaveToken(ctx context.Context, token, userID string, expires time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[token] = tokenRow{userID: userID, expires: expires}
	return nil
}

func (m *MemRepo) UserByToken(ctx context.Context, token string, now time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	if !now.Before(row.expires) {
		delete(m.tokens, token)
		return nil, ErrNotFound
	}
	u, ok := m.users[row.userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := u.User
	return &cp, nil
}

func (m *MemRepo) ListCategories(ctx context.Context) ([]model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.categories), nil
}

func (m *MemRepo) CategoryByLabel(ctx context.Context, label string) (*model.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.categories {
		if strings.EqualFold(c.Label, label) {
			cp := c
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemRepo) labelTakenLocked(label, except string) bool {
	return slices.ContainsFunc(m.categories, func(c model.Category) bool {
		return c.ID != except && strings.EqualFold(c.Label, label)
	})
}

func (m *MemRepo) CreateCategory(ctx context.Context, c model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.labelTakenLocked(c.Label, "") {
		return ErrConflict
	}
	m.categories = append(m.categories, c)
	return nil
}

func (m *MemRepo) RenameCategory(ctx context.Context, id, label string) (*model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.categories, func(c model.Category) bool { return c.ID == id })
	if i < 0 {
		return nil, ErrNotFound
	}
	if m.labelTakenLocked(label, id) {
		return nil, ErrConflict
	}
	m.categories[i].Label = label
	cp := m.categories[i]
	return &cp, nil
}

// DeleteCategory leaves the category's posts in place without a category.
func (m *MemRepo) DeleteCategory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.IndexFunc(m.categories, func(c model.Category) bool { return c.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	m.categories = slices.Delete(m.categories, i, i+1)
	for _, p := range m.posts {
		if p.CategoryID == id {
			p.CategoryID = ""
		}
	}
	return nil
}

func (m *MemRepo) CreatePost(ctx context.Context, p PostRecord) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.CategoryID != "" && !slices.ContainsFunc(m.categories, func(c model.Category) bool { return c.ID == p.CategoryID }) {
		return nil, ErrNotFound
	}
	p.Images = slices.Clone(p.Images)
	row := &postRow{PostRecord: p, seq: m.next()}
	m.posts[p.ID] = row
	out := m.composePostLocked(row)
	return &out, nil
}

func (m *MemRepo) GetPost(ctx context.Context, id string) (*model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.composePostLocked(row)
	return &out, nil
}

// ListPosts returns newest posts first. An empty categoryID lists every
// category.
func (m *MemRepo) ListPosts(ctx context.Context, categoryID string, offset, limit int) ([]model.Post, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := make([]*postRow, 0, len(m.posts))
	for _, p := range m.posts {
		if categoryID == "" || p.CategoryID == categoryID {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].seq > rows[j].seq
		}
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})

	start := min(max(offset, 0), len(rows))
	end := len(rows)
	if limit > 0 {
		end = min(start+limit, len(rows))
	}

	out := make([]model.Post, 0, end-start)
	for _, row := range rows[start:end] {
		out = append(out, m.composePostLocked(row))
	}
	return out, nil
}

func (m *MemRepo) UpdatePost(ctx context.Context, id string, title, description *string) (*model.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.posts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if title != nil {
		row.Title = *title
	}
	if description != nil {
		row.Description = *description
	}
	out := m.composePostLocked(row)
	return &out, nil
}

// DeletePost removes the post with its comments, likes and reports.
func (m *MemRepo) DeletePost(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[id]; !ok {
		return ErrNotFound
	}
	delete(m.posts, id)
	delete(m.likes, id)
	delete(m.reports, id)
	for cid, c := range m.comments {
		if c.PostID == id {
			delete(m.comments, cid)
			delete(m.likes, cid)
		}
	}
	return nil
}

func (m *MemRepo) composePostLocked(row *postRow) model.Post {
	p := model.Post{
		ID:          row.ID,
		Title:       row.Title,
		Description: row.Description,
		Images:      slices.Clone(row.Images),
		CreatedAt:   row.CreatedAt,
		Likes:       slices.Clone(m.likes[row.ID]),
	}
	if p.Likes == nil {
		p.Likes = []string{}
	}
	if u, ok := m.users[row.UserID]; ok {
		p.User = &model.UserRef{ID: u.ID, Name: u.Name}
	}
	if i := slices.IndexFunc(m.categories, func(c model.Category) bool { return c.ID == row.CategoryID }); i >= 0 {
		p.Category = &model.CategoryRef{ID: m.categories[i].ID, Label: m.categories[i].Label}
	}
	for _, c := range m.comments {
		if c.PostID == row.ID {
			p.Comments++
		}
	}
	return p
}

func (m *MemRepo) composeCommentLocked(row *commentRow) model.Comment {
	c := model.Comment{
		ID:        row.ID,
		Post:      row.PostID,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
		Likes:     slices.Clone(m.likes[row.ID]),
	}
	if c.Likes == nil {
		c.Likes = []string{}
	}
	if u, ok := m.users[row.UserID]; ok {
		c.User = &model.UserRef{ID: u.ID, Name: u.Name}
	}
	return c
}

func (m *MemRepo) CreateComment(ctx context.Context, c CommentRecord) (*model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[c.PostID]; !ok {
		return nil, ErrNotFound
	}
	row := &commentRow{CommentRecord: c, seq: m.next()}
	m.comments[c.ID] = row
	out := m.composeCommentLocked(row)
	return &out, nil
}

func (m *MemRepo) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.comments[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := m.composeCommentLocked(row)
	return &out, nil
}

// ListComments orders newest first, or by like count with newest first
// among equals.
func (m *MemRepo) ListComments(ctx context.Context, postID string, by model.CommentSort) ([]model.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.posts[postID]; !ok {
		return nil, ErrNotFound
	}

	var rows []*commentRow
	for _, c := range m.comments {
		if c.PostID == postID {
			rows = append(rows, c)
		}
	}
	newer := func(a, b *commentRow) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.seq > b.seq
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
	sort.Slice(rows, func(i, j int) bool {
		if by == model.CommentsLikes {
			li, lj := len(m.likes[rows[i].ID]), len(m.likes[rows[j].ID])
			if li != lj {
				return li > lj
			}
		}
		return newer(rows[i], rows[j])
	})

	out := make([]model.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, m.composeCommentLocked(row))
	}
	return out, nil
}

func (m *MemRepo) DeleteComment(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[id]; !ok {
		return ErrNotFound
	}
	delete(m.comments, id)
	delete(m.likes, id)
	return nil
}

func (m *MemRepo) ToggleLike(ctx context.Context, userID string, target model.Target) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch target.Type {
	case model.TargetPost:
		if _, ok := m.posts[target.ID]; !ok {
			return false, 0, ErrNotFound
		}
	case model.TargetComment:
		if _, ok := m.comments[target.ID]; !ok {
			return false, 0, ErrNotFound
		}
	default:
		return false, 0, ErrNotFound
	}

	likers := m.likes[target.ID]
	if i := slices.Index(likers, userID); i >= 0 {
		m.likes[target.ID] = slices.Delete(likers, i, i+1)
		return false, len(m.likes[target.ID]), nil
	}
	m.likes[target.ID] = append(likers, userID)
	return true, len(m.likes[target.ID]), nil
}

func (m *MemRepo) AddReport(ctx context.Context, postID, userID, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.posts[postID]; !ok {
		return false, ErrNotFound
	}
	if slices.ContainsFunc(m.reports[postID], func(r reportRow) bool { return r.userID == userID }) {
		return true, nil
	}
	m.reports[postID] = append(m.reports[postID], reportRow{userID: userID, reason: reason})
	return false, nil
}

// ListReports returns reported posts, most reported first.
func (m *MemRepo) ListReports(ctx context.Context) ([]model.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.Report, 0, len(m.reports))
	for postID, rows := range m.reports {
		post, ok := m.posts[postID]
		if !ok || len(rows) == 0 {
			continue
		}
		r := model.Report{Post: m.composePostLocked(post), Count: len(rows)}
		for _, row := range rows {
			r.Reasons = append(r.Reasons, row.reason)
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Post.ID < out[j].Post.ID
		}
		return out[i].Count > out[j].Count
	})
	return out, nil
}

func (m *MemRepo) DismissReports(ctx context.Context, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.reports[postID]; !ok {
		return ErrNotFound
	}
	delete(m.reports, postID)
	return nil
}
