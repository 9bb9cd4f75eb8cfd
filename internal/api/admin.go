package api

import (
	"context"
	"net/http"

	"github.com/bilyardvmetro/quill/internal/model"
)

func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	return getList[model.Category](ctx, c, request{op: "list categories", method: http.MethodGet, path: "/categories"})
}

func (c *Client) AddCategory(ctx context.Context, token, label string) (*model.Category, error) {
	return getOne[model.Category](ctx, c, request{
		op: "add category", method: http.MethodPost, path: "/categories", token: token,
		body: map[string]string{"label": label},
	})
}

func (c *Client) UpdateCategory(ctx context.Context, token, id, label string) (*model.Category, error) {
	return getOne[model.Category](ctx, c, request{
		op: "update category", method: http.MethodPut, path: "/categories/" + seg(id), token: token,
		body: map[string]string{"label": label},
	})
}

func (c *Client) DeleteCategory(ctx context.Context, token, id string) error {
	return c.send(ctx, request{
		op: "delete category", method: http.MethodDelete, path: "/categories/" + seg(id), token: token,
	}, nil)
}

func (c *Client) ReportPost(ctx context.Context, token, postID, reason string) (*model.ReportAck, error) {
	return getOne[model.ReportAck](ctx, c, request{
		op: "report post", method: http.MethodPost, path: "/reports/" + seg(postID), token: token,
		body: map[string]string{"reason": reason},
	})
}

func (c *Client) ListReports(ctx context.Context, token string) ([]model.Report, error) {
	return getList[model.Report](ctx, c, request{op: "list reports", method: http.MethodGet, path: "/reports", token: token})
}

func (c *Client) DismissReports(ctx context.Context, token, postID string) error {
	return c.send(ctx, request{
		op: "dismiss reports", method: http.MethodDelete, path: "/reports/" + seg(postID), token: token,
	}, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	return getList[model.User](ctx, c, request{op: "list users", method: http.MethodGet, path: "/users"})
}

func (c *Client) GetUser(ctx context.Context, id string) (*model.User, error) {
	return getOne[model.User](ctx, c, request{op: "get user", method: http.MethodGet, path: "/users/" + seg(id)})
}

type UserUpdate struct {
	Name *string `json:"name,omitempty"`
	Bio  *string `json:"bio,omitempty"`
}

func (c *Client) UpdateUser(ctx context.Context, token, id string, upd UserUpdate) (*model.User, error) {
	return getOne[model.User](ctx, c, request{
		op: "update user", method: http.MethodPut, path: "/users/" + seg(id), token: token, body: upd,
	})
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.Session, error) {
	return getOne[model.Session](ctx, c, request{
		op: "login", method: http.MethodPost, path: "/auth/login",
		body: map[string]string{"email": email, "password": password},
	})
}

func (c *Client) Signup(ctx context.Context, name, email, password string) (*model.Session, error) {
	return getOne[model.Session](ctx, c, request{
		op: "signup", method: http.MethodPost, path: "/auth/signup",
		body: map[string]string{"name": name, "email": email, "password": password},
	})
}
