package apiclient

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ghaggin/datingadmin/internal/model"
)

type ListOptions struct {
	Page   int    `url:"page,omitempty"`
	Limit  int    `url:"limit,omitempty"`
	Search string `url:"search,omitempty"`
}

type UserFilter struct {
	ListOptions
	Role   model.Role `url:"role,omitempty"`
	Status string     `url:"status,omitempty"`
}

type ReportFilter struct {
	ListOptions
	Status string `url:"status,omitempty"`
}

type SubscriptionFilter struct {
	ListOptions
	Plan   string `url:"plan,omitempty"`
	Status string `url:"status,omitempty"`
}

type loginResponse struct {
	Token string            `json:"token"`
	User  model.SessionUser `json:"user"`
}

func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.Session, error) {
	var out loginResponse
	if err := c.send(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		return nil, &Error{Kind: KindBusiness, Status: http.StatusOK, Message: "login response carried no token"}
	}

	return &model.Session{
		Token:      out.Token,
		User:       out.User,
		IsLoggedIn: true,
	}, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

// Me is the cheapest authenticated call; it doubles as the session
// liveness check.
func (c *Client) Me(ctx context.Context) (*model.SessionUser, error) {
	var out model.SessionUser
	if err := c.get(ctx, "/auth/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context, f UserFilter) (*model.Page[model.User], error) {
	var out model.Page[model.User]
	if err := c.get(ctx, "/users", f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetUser(ctx context.Context, id string) (*model.User, error) {
	var out model.User
	if err := c.get(ctx, "/users/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateUser(ctx context.Context, u model.NewUser) (*model.User, error) {
	var out model.User
	if err := c.send(ctx, http.MethodPost, "/users", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, id string, u model.UserUpdate) (*model.User, error) {
	var out model.User
	if err := c.send(ctx, http.MethodPut, "/users/"+url.PathEscape(id), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListModerators(ctx context.Context, opts ListOptions) (*model.Page[model.Moderator], error) {
	var out model.Page[model.Moderator]
	if err := c.get(ctx, "/moderators", opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateModerator(ctx context.Context, u model.NewUser) (*model.Moderator, error) {
	u.Role = model.RoleModerator

	var out model.Moderator
	if err := c.send(ctx, http.MethodPost, "/moderators", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteModerator(ctx context.Context, id string) error {
	return c.send(ctx, http.MethodDelete, "/moderators/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListReports(ctx context.Context, f ReportFilter) (*model.Page[model.Report], error) {
	var out model.Page[model.Report]
	if err := c.get(ctx, "/reports", f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ResolveReport(ctx context.Context, id string, r model.Resolution) (*model.Report, error) {
	var out model.Report
	if err := c.send(ctx, http.MethodPost, "/reports/"+url.PathEscape(id)+"/resolve", r, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListSubscriptions(ctx context.Context, f SubscriptionFilter) (*model.Page[model.Subscription], error) {
	var out model.Page[model.Subscription]
	if err := c.get(ctx, "/subscriptions", f, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	var out model.Stats
	if err := c.get(ctx, "/stats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
