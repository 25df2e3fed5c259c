package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/jrsteele09/go-admin-gate/adminstore"
	"github.com/jrsteele09/go-admin-gate/adminstore/postgres"
	"github.com/stretchr/testify/require"
)

// These tests need a database migrated with migrations/ and are skipped otherwise.
func newStorage(t *testing.T) *postgres.Storage {
	t.Helper()
	conn := os.Getenv("TEST_DATABASE_URL")
	if conn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := postgres.New(context.Background(), conn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestUnknownIdentityIsRecordedInactive(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	providerID := gofakeit.Numerify("##################")
	_, err := s.LookupAdmin(ctx, providerID)
	require.ErrorIs(t, err, adminstore.ErrAdminNotFound)

	require.NoError(t, s.UpsertAdminProfile(ctx, adminstore.Profile{
		ProviderID: providerID,
		Username:   gofakeit.Username(),
		Email:      gofakeit.Email(),
	}))

	a, err := s.LookupAdmin(ctx, providerID)
	require.NoError(t, err)
	require.False(t, a.IsActive)
}

func TestSessionLifecycle(t *testing.T) {
	s := newStorage(t)
	ctx := context.Background()

	v, err := s.VerifySession(ctx, gofakeit.LetterN(64))
	require.NoError(t, err)
	require.False(t, v.IsValid)

	require.NoError(t, s.LogLoginAttempt(ctx, adminstore.LoginAttempt{
		Action:       adminstore.ActionInvalidState,
		ErrorMessage: "state invalid",
		IPAddress:    gofakeit.IPv4Address(),
	}))

	_, err = s.RefreshSession(ctx, gofakeit.LetterN(64), time.Hour)
	require.Error(t, err)
}
