package gateway

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Tiliavir/tsheet/internal/model"
)

// ListUsers returns every account. Admins and user managers only.
func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, c.authed, http.MethodGet, "/users", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type userReply struct {
	User        *model.User `json:"user"`
	UpdatedUser *model.User `json:"updatedUser"`
	Message     string      `json:"message"`
}

func (r userReply) item() *model.User {
	if r.UpdatedUser != nil && r.UpdatedUser.ID != "" {
		return r.UpdatedUser
	}
	if r.User != nil && r.User.ID != "" {
		return r.User
	}
	return nil
}

// UpdateUser applies patch to user id. The returned user is nil when the
// backend answers with a message only.
func (c *Client) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, string, error) {
	var out userReply
	if err := c.do(ctx, c.authed, http.MethodPut, "/users/"+url.PathEscape(id), nil, patch, &out); err != nil {
		return nil, "", err
	}
	return out.item(), out.Message, nil
}

// DeleteUser removes user id.
func (c *Client) DeleteUser(ctx context.Context, id string) (string, error) {
	var out message
	if err := c.do(ctx, c.authed, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}
