package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-admin-gate/internal/errors"
	"golang.org/x/oauth2"
)

// DiscordBaseURL is the public Discord API host.
const DiscordBaseURL = "https://discord.com"

// Discord is the Discord OAuth2 provider. Profiles come from /api/v10/users/@me.
type Discord struct {
	baseURL string
}

var _ Provider = (*Discord)(nil)

// NewDiscord returns the Discord provider. An empty baseURL uses DiscordBaseURL.
func NewDiscord(baseURL string) *Discord {
	if baseURL == "" {
		baseURL = DiscordBaseURL
	}
	return &Discord{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (d *Discord) Name() string {
	return "discord"
}

func (d *Discord) Endpoint() oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:  d.baseURL + "/api/oauth2/authorize",
		TokenURL: d.baseURL + "/api/oauth2/token",
	}
}

func (d *Discord) UserInfo(ctx context.Context, src oauth2.TokenSource) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/api/v10/users/@me", nil)
	if err != nil {
		return Profile{}, fmt.Errorf("[identity discord UserInfo] new request: %w", err)
	}
	resp, err := oauth2.NewClient(ctx, src).Do(req)
	if err != nil {
		return Profile{}, apperrors.Wrapf(apperrors.ErrUserInfo, "[identity discord UserInfo] %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return Profile{}, apperrors.Wrapf(apperrors.ErrUserInfo, "[identity discord UserInfo] status %d", resp.StatusCode)
	}

	var p Profile
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&p); err != nil {
		return Profile{}, apperrors.Wrapf(apperrors.ErrUserInfo, "[identity discord UserInfo] decode: %v", err)
	}
	if p.ID == "" {
		return Profile{}, apperrors.Wrapf(apperrors.ErrUserInfo, "[identity discord UserInfo] profile without id")
	}
	return p, nil
}
