package main

import (
	"context"
	"testing"

	"github.com/jrsteele09/go-admin-gate/adminstore"
	"github.com/jrsteele09/go-admin-gate/internal/config"
	"github.com/jrsteele09/go-admin-gate/tabstore"
	"github.com/stretchr/testify/require"
)

func loadConfig(t *testing.T, env map[string]string) config.Config {
	t.Setenv("CONFIG_PATH", "")
	for k, v := range env {
		t.Setenv(k, v)
	}
	c, err := config.New()
	require.NoError(t, err)
	return c
}

func TestFlowOptions(t *testing.T) {
	c := loadConfig(t, map[string]string{
		"OAUTH_CLIENT_ID": "1234567890",
		"BASE_URL":        "https://admin.example.com/",
		"OAUTH_PKCE":      "false",
	})

	opts := flowOptions(c)
	require.Equal(t, "1234567890", opts.Client.ClientID)
	require.Equal(t, "https://admin.example.com/auth/callback", opts.Client.RedirectURI)
	require.Equal(t, []string{"identify", "email"}, opts.Client.Scopes)
	require.True(t, opts.Client.PKCE, "a public client keeps PKCE")
	require.Equal(t, 100000, opts.KDFIterations)

	c = loadConfig(t, map[string]string{
		"OAUTH_CLIENT_SECRET": "shh",
		"OAUTH_PKCE":          "false",
		"OAUTH_REDIRECT_URL":  "https://other.example.com/cb",
	})
	opts = flowOptions(c)
	require.False(t, opts.Client.PKCE)
	require.Equal(t, "https://other.example.com/cb", opts.Client.RedirectURI)
}

func TestBuildMemoryBackends(t *testing.T) {
	c := loadConfig(t, map[string]string{"ADMIN_SEED_IDS": "80351110224678912"})

	b, err := buildBackends(context.Background(), c)
	require.NoError(t, err)
	defer b.Close()

	admin, err := b.admins.LookupAdmin(context.Background(), "80351110224678912")
	require.NoError(t, err)
	require.True(t, admin.IsActive)

	_, err = b.admins.LookupAdmin(context.Background(), "1")
	require.ErrorIs(t, err, adminstore.ErrAdminNotFound)

	require.IsType(t, &tabstore.InMemoryRepo{}, b.tabs)
}

func TestBuildBackendsRejectsUnknown(t *testing.T) {
	c := loadConfig(t, map[string]string{"ADMIN_STORE": "mongo"})
	_, err := buildBackends(context.Background(), c)
	require.Error(t, err)

	c = loadConfig(t, map[string]string{"TAB_STORE": "memcached"})
	_, err = buildBackends(context.Background(), c)
	require.Error(t, err)
}

func TestBuildProvider(t *testing.T) {
	p, err := buildProvider(context.Background(), loadConfig(t, nil))
	require.NoError(t, err)
	require.Equal(t, "discord", p.Name())

	_, err = buildProvider(context.Background(), loadConfig(t, map[string]string{"OAUTH_PROVIDER": "github"}))
	require.Error(t, err)
}
