// Package supabase reaches the authorization store through a hosted PostgREST
// endpoint: SQL functions are called as RPCs and tables are read through the REST API.
package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	"github.com/jrsteele09/go-admin-gate/internal/utils"
	"github.com/supabase-community/postgrest-go"
)

const schema = "public"

// Client calls the PostgREST API of a Supabase project.
type Client struct {
	restURL string
	headers map[string]string
}

var _ adminstore.Store = (*Client)(nil)

// New creates a client for the project at baseURL (e.g. "https://xyz.supabase.co").
func New(baseURL, apiKey string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("[supabase New] base url is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("[supabase New] api key is required")
	}
	c := &Client{
		restURL: strings.TrimSuffix(baseURL, "/") + "/rest/v1",
		headers: map[string]string{
			"apikey":        apiKey,
			"Authorization": "Bearer " + apiKey,
		},
	}
	if _, err := c.rest(); err != nil {
		return nil, fmt.Errorf("[supabase New] %w", err)
	}
	return c, nil
}

// APIError is an error body returned by PostgREST.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supabase: %s %s", e.Code, e.Message)
}

type adminRow struct {
	ID              string  `json:"id"`
	DiscordID       string  `json:"discord_id"`
	DiscordUsername string  `json:"discord_username"`
	DiscordAvatar   *string `json:"discord_avatar"`
	IsActive        bool    `json:"is_active"`
	IsSuperAdmin    bool    `json:"is_super_admin"`
}

type verifyRow struct {
	IsValid         bool       `json:"is_valid"`
	AdminID         *string    `json:"admin_id"`
	DiscordID       *string    `json:"discord_id"`
	DiscordUsername *string    `json:"discord_username"`
	IsSuperAdmin    *bool      `json:"is_super_admin"`
	ExpiresAt       *time.Time `json:"expires_at"`
}

func (c *Client) UpsertAdminProfile(ctx context.Context, p adminstore.Profile) error {
	return c.rpc(ctx, "upsert_admin", map[string]any{
		"p_discord_id":       p.ProviderID,
		"p_discord_username": p.Username,
		"p_discord_avatar":   utils.NilIfZero(p.Avatar),
		"p_discord_email":    utils.NilIfZero(p.Email),
	}, nil)
}

func (c *Client) LookupAdmin(ctx context.Context, providerID string) (*adminstore.Admin, error) {
	rest, err := c.rest()
	if err != nil {
		return nil, err
	}
	var rows []adminRow
	_, err = await(ctx, func() (int64, error) {
		return rest.From("admin_users").
			Select("id,discord_id,discord_username,discord_avatar,is_active,is_super_admin", "", false).
			Eq("discord_id", providerID).
			Limit(1, "").
			ExecuteTo(&rows)
	})
	if err != nil {
		return nil, fmt.Errorf("[supabase LookupAdmin] %w", err)
	}
	if len(rows) == 0 {
		return nil, adminstore.ErrAdminNotFound
	}
	r := rows[0]
	return &adminstore.Admin{
		AdminID:      r.ID,
		ProviderID:   r.DiscordID,
		Username:     r.DiscordUsername,
		Avatar:       utils.Value(r.DiscordAvatar),
		IsActive:     r.IsActive,
		IsSuperAdmin: r.IsSuperAdmin,
	}, nil
}

func (c *Client) CreateSession(ctx context.Context, ns adminstore.NewSession) error {
	return c.rpc(ctx, "create_session", map[string]any{
		"p_admin_id":       ns.AdminID,
		"p_session_token":  ns.SessionToken,
		"p_ip_address":     utils.NilIfZero(ns.IPAddress),
		"p_user_agent":     utils.NilIfZero(ns.UserAgent),
		"p_duration_hours": adminstore.DurationHours(ns.Duration),
	}, nil)
}

func (c *Client) VerifySession(ctx context.Context, token string) (adminstore.Verification, error) {
	var rows []verifyRow
	err := c.rpc(ctx, "verify_session", map[string]any{"p_session_token": token}, &rows)
	if err != nil {
		return adminstore.Verification{}, err
	}
	if len(rows) == 0 || !rows[0].IsValid {
		return adminstore.Verification{}, nil
	}
	r := rows[0]
	v := adminstore.Verification{
		IsValid:      true,
		AdminID:      utils.Value(r.AdminID),
		ProviderID:   utils.Value(r.DiscordID),
		Username:     utils.Value(r.DiscordUsername),
		IsSuperAdmin: utils.Value(r.IsSuperAdmin),
	}
	if r.ExpiresAt != nil {
		v.ExpiresAt = *r.ExpiresAt
	}
	return v, nil
}

func (c *Client) RefreshSession(ctx context.Context, token string, d time.Duration) (time.Time, error) {
	var expiresAt *time.Time
	err := c.rpc(ctx, "refresh_session", map[string]any{
		"p_session_token":  token,
		"p_duration_hours": adminstore.DurationHours(d),
	}, &expiresAt)
	if err != nil {
		return time.Time{}, err
	}
	if expiresAt == nil {
		return time.Time{}, fmt.Errorf("[supabase RefreshSession] session is not live")
	}
	return *expiresAt, nil
}

func (c *Client) RevokeSession(ctx context.Context, token string) error {
	return c.rpc(ctx, "revoke_session", map[string]any{"p_session_token": token}, nil)
}

func (c *Client) LogLoginAttempt(ctx context.Context, a adminstore.LoginAttempt) error {
	return c.rpc(ctx, "log_admin_login", map[string]any{
		"p_discord_id":    utils.NilIfZero(a.ProviderID),
		"p_action":        a.Action,
		"p_ip_address":    utils.NilIfZero(a.IPAddress),
		"p_user_agent":    utils.NilIfZero(a.UserAgent),
		"p_success":       a.Success,
		"p_error_message": utils.NilIfZero(a.ErrorMessage),
	}, nil)
}

// rest returns a fresh PostgREST client. postgrest.Client records request errors
// on itself, so one is never shared between calls.
func (c *Client) rest() (*postgrest.Client, error) {
	rest := postgrest.NewClient(c.restURL, schema, c.headers)
	if rest.ClientError != nil {
		return nil, rest.ClientError
	}
	return rest, nil
}

func (c *Client) rpc(ctx context.Context, fn string, args map[string]any, out any) error {
	rest, err := c.rest()
	if err != nil {
		return err
	}
	body, err := await(ctx, func() (string, error) {
		body := rest.Rpc(fn, "", args)
		return body, rest.ClientError
	})
	if err != nil {
		return fmt.Errorf("[supabase rpc %s] %w", fn, err)
	}
	return decodeRPC(fn, body, out)
}

// decodeRPC reads an RPC response body. Rpc does not surface the status code, so
// PostgREST errors are recognised by their JSON shape.
func decodeRPC(fn, body string, out any) error {
	data := []byte(strings.TrimSpace(body))
	if len(data) == 0 {
		return nil
	}
	if !json.Valid(data) {
		return fmt.Errorf("[supabase rpc %s] unexpected response", fn)
	}
	if data[0] == '{' {
		var apiErr APIError
		if err := json.Unmarshal(data, &apiErr); err == nil && (apiErr.Code != "" || apiErr.Message != "") {
			return &apiErr
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("[supabase rpc %s] decode: %w", fn, err)
	}
	return nil
}

// await runs a postgrest call and stops waiting for it when ctx ends.
// TODO: pass ctx to the request once postgrest-go accepts one per call.
func await[T any](ctx context.Context, call func() (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := call()
		done <- result{v, err}
	}()
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case r := <-done:
		return r.v, r.err
	}
}
