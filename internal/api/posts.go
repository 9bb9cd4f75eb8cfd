package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bilyardvmetro/quill/internal/model"
)

// ListPosts fetches one page of posts for a category selector. "all"
// disables the filter.
func (c *Client) ListPosts(ctx context.Context, category string, page int) ([]model.Post, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("category", category)
	q.Set("page", strconv.Itoa(page))
	return getList[model.Post](ctx, c, request{op: "list posts", method: http.MethodGet, path: "/posts", query: q})
}

func (c *Client) GetPost(ctx context.Context, id string) (*model.Post, error) {
	return getOne[model.Post](ctx, c, request{op: "get post", method: http.MethodGet, path: "/posts/" + seg(id)})
}

// PostUpdate carries the editable fields; nil fields are left alone.
type PostUpdate struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (c *Client) UpdatePost(ctx context.Context, token, id string, upd PostUpdate) (*model.Post, error) {
	return getOne[model.Post](ctx, c, request{
		op: "update post", method: http.MethodPut, path: "/posts/" + seg(id), token: token, body: upd,
	})
}

func (c *Client) DeletePost(ctx context.Context, token, id string) error {
	return c.send(ctx, request{op: "delete post", method: http.MethodDelete, path: "/post/" + seg(id), token: token}, nil)
}

type Image struct {
	Name string
	Data io.Reader
}

type NewPost struct {
	Title       string
	Description string
	Category    string
	Images      []Image
}

// CreatePost uploads the post as multipart form data.
func (c *Client) CreatePost(ctx context.Context, token string, p NewPost) (*model.Post, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range [][2]string{{"title", p.Title}, {"description", p.Description}, {"category", p.Category}} {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
	}
	for _, img := range p.Images {
		part, err := w.CreateFormFile("images", img.Name)
		if err != nil {
			return nil, fmt.Errorf("create post: %w", err)
		}
		if _, err := io.Copy(part, img.Data); err != nil {
			return nil, fmt.Errorf("create post: read %s: %w", img.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	return getOne[model.Post](ctx, c, request{
		op: "create post", method: http.MethodPost, path: "/posts", token: token,
		rawBody: &buf, contentType: w.FormDataContentType(),
	})
}
