// Package auth holds the signed-in user's session: the bearer token issued by
// the backend and the user information carried in its claims.
//
// A Session is created once at startup with Open, injected into the
// components that need it, and torn down with Logout.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/Tiliavir/tsheet/internal/model"
)

// TokenKey is the key the bearer token is persisted under.
const TokenKey = "authToken"

// ErrUnauthenticated is returned by Token when nobody is signed in.
var ErrUnauthenticated = errors.New("not signed in (run `tsheet login`)")

// UserInfo is the identity decoded from the token claims.
type UserInfo struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Name           string     `json:"name,omitempty"`
	Role           model.Role `json:"role"`
	PreferredHours *float64   `json:"preferedHours,omitempty"`
}

// claims mirrors the payload the backend signs.
type claims struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	Name           string  `json:"name"`
	Role           string  `json:"role"`
	PreferredHours *float64 `json:"preferedHours"`
	jwt.RegisteredClaims
}

// Session is safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	path  string
	token string
	user  *UserInfo
}

// Open loads the session persisted at path. A missing file yields a signed
// out session.
func Open(path string) (*Session, error) {
	s := &Session{path: path}
	values, err := readValues(path)
	if err != nil {
		return nil, err
	}
	s.apply(values[TokenKey])
	return s, nil
}

// Memory returns a session that is never persisted.
func Memory(token string) *Session {
	s := &Session{}
	s.apply(token)
	return s
}

// SetToken stores a freshly issued token and decodes its claims.
func (s *Session) SetToken(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := writeValues(s.path, map[string]string{TokenKey: token}); err != nil {
			return err
		}
	}
	s.setLocked(token)
	return nil
}

// Logout clears the token and user info and removes the persisted key.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.user = nil
	if s.path == "" {
		return nil
	}
	return removeValues(s.path)
}

// Authenticated reports whether a token is present.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

// User returns the decoded identity, or nil when signed out or when the
// token could not be decoded.
func (s *Session) User() *UserInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return nil, ErrUnauthenticated
	}
	return &oauth2.Token{AccessToken: s.token, TokenType: "Bearer"}, nil
}

func (s *Session) apply(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(token)
}

func (s *Session) setLocked(token string) {
	s.token = token
	s.user = nil
	if token == "" {
		return
	}
	if u, err := Decode(token); err == nil {
		s.user = u
	}
}

// Decode reads the identity claims of token without verifying its
// signature; the backend verifies it on every request.
func Decode(token string) (*UserInfo, error) {
	var c claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return nil, fmt.Errorf("decoding auth token: %w", err)
	}
	if c.ID == "" {
		c.ID = c.Subject
	}
	return &UserInfo{
		ID:             c.ID,
		Email:          c.Email,
		Name:           c.Name,
		Role:           model.Role(c.Role),
		PreferredHours: c.PreferredHours,
	}, nil
}
