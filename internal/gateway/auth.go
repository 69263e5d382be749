package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/Tiliavir/tsheet/internal/model"
)

// Registration is the payload for creating an account.
type Registration struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	Role           model.Role `json:"role,omitempty"`
	PreferredHours *float64   `json:"preferedHours,omitempty"`
}

// Register creates an account. It does not require a session.
func (c *Client) Register(ctx context.Context, in Registration) (model.User, string, error) {
	var out userReply
	if err := c.do(ctx, c.public, http.MethodPost, "/auth/register", nil, in, &out); err != nil {
		return model.User{}, "", err
	}
	var u model.User
	if item := out.item(); item != nil {
		u = *item
	}
	return u, out.Message, nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body := map[string]string{"email": email, "password": password}
	var out struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, c.public, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("login response did not contain a token")
	}
	return out.Token, nil
}
