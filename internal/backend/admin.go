package backend

import (
	"context"
	"net/http"
)

// Row is a positional record as the admin endpoints return them.
// Users are [id, username, created_at, token]; conversation rows are
// [id, convtoken, user, question, answer, created_at].
type Row []any

// AdminUserDetail is the /admin/user/{id} response.
type AdminUserDetail struct {
	User          map[string]any `json:"user"`
	Conversations []Row          `json:"conversations"`
}

// AdminUsers calls GET /admin/users.
func (c *Client) AdminUsers(ctx context.Context, userToken string) ([]Row, error) {
	var out struct {
		Users []Row `json:"users"`
	}
	if err := c.do(ctx, get("admin users", "/admin/users", map[string]string{"usertoken": userToken}), &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

// AdminUser calls GET /admin/user/{id}.
func (c *Client) AdminUser(ctx context.Context, userToken, id string) (*AdminUserDetail, error) {
	var out AdminUserDetail
	err := c.do(ctx, call{
		op:     "admin user",
		method: http.MethodGet,
		path:   "/admin/user/{id}",
		query:  map[string]string{"usertoken": userToken},
		params: map[string]string{"id": id},
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminDeleteUser calls DELETE /admin/user/{id}.
func (c *Client) AdminDeleteUser(ctx context.Context, userToken, id string) error {
	return c.do(ctx, call{
		op:     "admin delete user",
		method: http.MethodDelete,
		path:   "/admin/user/{id}",
		query:  map[string]string{"usertoken": userToken},
		params: map[string]string{"id": id},
	}, nil)
}
