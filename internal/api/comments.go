package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/bilyardvmetro/quill/internal/model"
)

func (c *Client) ListComments(ctx context.Context, postID string, sort model.CommentSort) ([]model.Comment, error) {
	if sort == "" {
		sort = model.CommentsRecent
	}
	q := url.Values{}
	q.Set("sortBy", string(sort))
	return getList[model.Comment](ctx, c, request{
		op: "list comments", method: http.MethodGet, path: "/comments/" + seg(postID), query: q,
	})
}

func (c *Client) AddComment(ctx context.Context, token, postID, content string) (*model.Comment, error) {
	return getOne[model.Comment](ctx, c, request{
		op: "add comment", method: http.MethodPost, path: "/comments/" + seg(postID), token: token,
		body: map[string]string{"content": content},
	})
}

func (c *Client) DeleteComment(ctx context.Context, token, commentID string) error {
	return c.send(ctx, request{
		op: "delete comment", method: http.MethodDelete, path: "/comments/" + seg(commentID), token: token,
	}, nil)
}

func (c *Client) ToggleLike(ctx context.Context, token string, target model.Target) (*model.LikeResult, error) {
	return getOne[model.LikeResult](ctx, c, request{
		op: "toggle like", method: http.MethodPost, path: "/likes", token: token, body: target,
	})
}
