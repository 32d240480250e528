package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonoseba/portal/internal/model"
)

// Session is the result of a successful login.
type Session struct {
	Token  string         `json:"token"`
	UserID string         `json:"userId"`
	Name   string         `json:"name"`
	Role   model.UserRole `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a session token. The portal wraps the
// session in a {"data": ...} envelope; an unwrapped body is also accepted.
func Login(ctx context.Context, c *Client, email, password string) (*Session, error) {
	var raw json.RawMessage
	if err := c.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &raw); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}

	var env struct {
		Data *Session `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding login response: %w", err)
	}
	sess := env.Data
	if sess == nil {
		sess = &Session{}
		if err := json.Unmarshal(raw, sess); err != nil {
			return nil, fmt.Errorf("decoding login response: %w", err)
		}
	}
	if sess.Token == "" {
		return nil, errors.New("login response did not include a token")
	}
	return sess, nil
}
