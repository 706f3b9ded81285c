package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/clientcredentials"
)

// Auth0Config configures the Management API client.
type Auth0Config struct {
	Domain       string // e.g. "example.eu.auth0.com"
	ClientID     string
	ClientSecret string
	Connection   string // database connection new users are created in
}

// Auth0Client talks to the Auth0 Management API v2. Tokens are obtained
// via the client-credentials grant and refreshed by the oauth2 transport.
type Auth0Client struct {
	baseURL    string
	http       *http.Client
	connection string

	mu      sync.Mutex
	roleIDs map[string]string // role name -> Auth0 role ID
}

// NewAuth0Client builds a Management API client for the given tenant.
func NewAuth0Client(ctx context.Context, cfg Auth0Config) *Auth0Client {
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("https://%s/oauth/token", cfg.Domain),
		EndpointParams: url.Values{
			"audience": {fmt.Sprintf("https://%s/api/v2/", cfg.Domain)},
		},
	}
	hc := cc.Client(ctx)
	hc.Timeout = 15 * time.Second
	return &Auth0Client{
		baseURL:    fmt.Sprintf("https://%s/api/v2", cfg.Domain),
		http:       hc,
		connection: cfg.Connection,
		roleIDs:    make(map[string]string),
	}
}

func (c *Auth0Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		rd = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func statusError(resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrBadRequest, strings.TrimSpace(string(msg)))
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, strings.TrimSpace(string(msg)))
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(msg)))
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, strings.TrimSpace(string(msg)))
	default:
		return fmt.Errorf("identity provider: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}

// GetUser fetches a single account by provider user ID.
func (c *Auth0Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns every account in the tenant, paging through the
// Management API 50 at a time.
func (c *Auth0Client) ListUsers(ctx context.Context) ([]User, error) {
	var all []User
	for page := 0; ; page++ {
		var batch []User
		path := fmt.Sprintf("/users?per_page=50&page=%d", page)
		if err := c.do(ctx, http.MethodGet, path, nil, &batch); err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < 50 {
			return all, nil
		}
	}
}

// CreateUser provisions a database-connection account with a random
// password; the user completes setup through a password reset.
func (c *Auth0Client) CreateUser(ctx context.Context, email string) (*User, error) {
	body := map[string]interface{}{
		"email":      email,
		"password":   uuid.NewString() + "A1!", // satisfies the default policy
		"connection": c.connection,
	}
	var u User
	if err := c.do(ctx, http.MethodPost, "/users", body, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// DeleteUser removes the account. Auth0 treats deletes of unknown users
// as success, so callers cannot rely on ErrNotFound here.
func (c *Auth0Client) DeleteUser(ctx context.Context, userID string) error {
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID), nil, nil)
}

// roleID resolves a role name to its provider ID, caching the result.
func (c *Auth0Client) roleID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	id, ok := c.roleIDs[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var roles []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	path := "/roles?name_filter=" + url.QueryEscape(name)
	if err := c.do(ctx, http.MethodGet, path, nil, &roles); err != nil {
		return "", err
	}
	for _, r := range roles {
		if r.Name == name {
			c.mu.Lock()
			c.roleIDs[name] = r.ID
			c.mu.Unlock()
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%w: role %q", ErrNotFound, name)
}

// AddRoleName assigns the named role to the user.
func (c *Auth0Client) AddRoleName(ctx context.Context, userID, roleName string) error {
	id, err := c.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	body := map[string][]string{"roles": {id}}
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/roles", body, nil)
}

// RemoveRoleName unassigns the named role from the user.
func (c *Auth0Client) RemoveRoleName(ctx context.Context, userID, roleName string) error {
	id, err := c.roleID(ctx, roleName)
	if err != nil {
		return err
	}
	body := map[string][]string{"roles": {id}}
	return c.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(userID)+"/roles", body, nil)
}

// ListRoleNames returns the role names currently assigned to the user.
func (c *Auth0Client) ListRoleNames(ctx context.Context, userID string) ([]string, error) {
	var roles []struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/roles", nil, &roles); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, r := range roles {
		names = append(names, r.Name)
	}
	return names, nil
}

// Ping verifies the client can reach the Management API and holds a
// valid token.
func (c *Auth0Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/users?per_page=1&page=0", nil, nil)
}
