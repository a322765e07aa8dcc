package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// UserInfo is the /get-user-info record. The backend spells the calendar
// field "calendertoken" on read and "calendartoken" on write.
type UserInfo struct {
	ID            any    `json:"id,omitempty"`
	Email         string `json:"email"`
	Username      string `json:"username,omitempty"`
	FullName      string `json:"fullname,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Password      string `json:"password,omitempty"`
	BotDefinition string `json:"botDefinition,omitempty"`
	CalendarToken string `json:"calendertoken,omitempty"`
	Plan          string `json:"plan,omitempty"`
}

// UserUpdate is the body of POST /edit.
type UserUpdate struct {
	CalendarToken string `json:"calendartoken"`
	Password      string `json:"password"`
	BotDefinition string `json:"botDefinition"`
}

// Registration is the body of POST /savedata.
type Registration struct {
	Email               string `json:"email"`
	Password            string `json:"password"`
	BotDefinition       string `json:"botDefinition"`
	GoogleCalendarToken string `json:"googleCalendarToken"`
	Plan                string `json:"plan"`
	FullName            string `json:"fullname"`
	Phone               string `json:"phone"`
}

type tokenResponse struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

// GetUserInfo calls GET /get-user-info. The backend answers with either a
// single object or an array whose first element is the user.
func (c *Client) GetUserInfo(ctx context.Context, userToken string) (*UserInfo, error) {
	var raw json.RawMessage
	if err := c.do(ctx, get("get user info", "/get-user-info", map[string]string{"usertoken": userToken}), &raw); err != nil {
		return nil, err
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var users []UserInfo
		if err := json.Unmarshal(raw, &users); err != nil {
			return nil, fmt.Errorf("get user info: unmarshal list: %w", err)
		}
		if len(users) == 0 {
			return nil, errors.New("get user info: empty user list")
		}
		return &users[0], nil
	}

	var u UserInfo
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("get user info: unmarshal: %w", err)
	}
	return &u, nil
}

// Authenticate calls GET /auth. Any 2xx means the credentials were accepted.
func (c *Client) Authenticate(ctx context.Context, email, password string) error {
	return c.do(ctx, get("authenticate", "/auth", map[string]string{
		"email":    email,
		"password": password,
	}), nil)
}

// GetToken calls GET /get-token.
func (c *Client) GetToken(ctx context.Context, email string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, get("get token", "/get-token", map[string]string{"email": email}), &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

// DefineBot calls POST /chat, which derives a bot definition from a website.
func (c *Client) DefineBot(ctx context.Context, domain string) (string, error) {
	var out struct {
		Reply string `json:"reply"`
		Error string `json:"error"`
	}
	err := c.do(ctx, call{op: "define bot", method: http.MethodPost, path: "/chat", body: map[string]string{"domain": domain}}, &out)
	if err != nil {
		return "", err
	}
	if out.Reply == "" {
		if out.Error != "" {
			return "", fmt.Errorf("define bot: %s", out.Error)
		}
		return "", errors.New("define bot: empty reply")
	}
	return out.Reply, nil
}

// SaveRegistration calls POST /savedata and returns the new session token.
func (c *Client) SaveRegistration(ctx context.Context, reg Registration) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, call{op: "save registration", method: http.MethodPost, path: "/savedata", body: reg}, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		if out.Error != "" {
			return "", fmt.Errorf("save registration: %s", out.Error)
		}
		return "", errors.New("save registration: no token returned")
	}
	return out.Token, nil
}

// EditUserInfo calls POST /edit.
func (c *Client) EditUserInfo(ctx context.Context, userToken string, upd UserUpdate) error {
	return c.do(ctx, call{
		op:     "edit user info",
		method: http.MethodPost,
		path:   "/edit",
		query:  map[string]string{"usertoken": userToken},
		body:   upd,
	}, nil)
}
