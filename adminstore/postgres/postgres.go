package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jrsteele09/go-admin-gate/adminstore"
	"github.com/jrsteele09/go-admin-gate/internal/utils"
)

// Storage talks to the authorization schema in migrations/ through its SQL functions.
type Storage struct {
	dbPool *pgxpool.Pool
}

var _ adminstore.Store = (*Storage)(nil)

// New opens a connection pool and pings the database.
func New(ctx context.Context, connString string) (*Storage, error) {
	const op = "adminstore.postgres.New"

	dbPool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}
	return &Storage{dbPool: dbPool}, nil
}

// Close releases the pool.
func (s *Storage) Close() {
	s.dbPool.Close()
}

func (s *Storage) UpsertAdminProfile(ctx context.Context, p adminstore.Profile) error {
	const op = "adminstore.postgres.UpsertAdminProfile"

	_, err := s.dbPool.Exec(ctx,
		`SELECT upsert_admin($1, $2, $3, $4)`,
		p.ProviderID, p.Username, utils.NilIfZero(p.Avatar), utils.NilIfZero(p.Email))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) LookupAdmin(ctx context.Context, providerID string) (*adminstore.Admin, error) {
	const op = "adminstore.postgres.LookupAdmin"

	var (
		a      adminstore.Admin
		avatar *string
	)
	err := s.dbPool.QueryRow(ctx,
		`SELECT id::text, discord_id, discord_username, discord_avatar, is_active, is_super_admin
		   FROM admin_users WHERE discord_id = $1`,
		providerID,
	).Scan(&a.AdminID, &a.ProviderID, &a.Username, &avatar, &a.IsActive, &a.IsSuperAdmin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, adminstore.ErrAdminNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if avatar != nil {
		a.Avatar = *avatar
	}
	return &a, nil
}

func (s *Storage) CreateSession(ctx context.Context, ns adminstore.NewSession) error {
	const op = "adminstore.postgres.CreateSession"

	_, err := s.dbPool.Exec(ctx,
		`SELECT create_session($1::uuid, $2, NULLIF($3, '')::inet, $4, $5)`,
		ns.AdminID, ns.SessionToken, ns.IPAddress, utils.NilIfZero(ns.UserAgent), adminstore.DurationHours(ns.Duration))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) VerifySession(ctx context.Context, token string) (adminstore.Verification, error) {
	const op = "adminstore.postgres.VerifySession"

	var (
		v                             adminstore.Verification
		adminID, providerID, username *string
		superAdmin                    *bool
		expiresAt                     *time.Time
	)
	err := s.dbPool.QueryRow(ctx,
		`SELECT is_valid, admin_id::text, discord_id, discord_username, is_super_admin, expires_at
		   FROM verify_session($1)`,
		token,
	).Scan(&v.IsValid, &adminID, &providerID, &username, &superAdmin, &expiresAt)
	if err != nil {
		return adminstore.Verification{}, fmt.Errorf("%s: %w", op, err)
	}
	if !v.IsValid {
		return adminstore.Verification{}, nil
	}
	v.AdminID = utils.Value(adminID)
	v.ProviderID = utils.Value(providerID)
	v.Username = utils.Value(username)
	v.IsSuperAdmin = superAdmin != nil && *superAdmin
	if expiresAt != nil {
		v.ExpiresAt = *expiresAt
	}
	return v, nil
}

func (s *Storage) RefreshSession(ctx context.Context, token string, d time.Duration) (time.Time, error) {
	const op = "adminstore.postgres.RefreshSession"

	var expiresAt *time.Time
	err := s.dbPool.QueryRow(ctx,
		`SELECT refresh_session($1, $2)`,
		token, adminstore.DurationHours(d),
	).Scan(&expiresAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}
	if expiresAt == nil {
		return time.Time{}, fmt.Errorf("%s: session is not live", op)
	}
	return *expiresAt, nil
}

func (s *Storage) RevokeSession(ctx context.Context, token string) error {
	const op = "adminstore.postgres.RevokeSession"

	if _, err := s.dbPool.Exec(ctx, `SELECT revoke_session($1)`, token); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *Storage) LogLoginAttempt(ctx context.Context, a adminstore.LoginAttempt) error {
	const op = "adminstore.postgres.LogLoginAttempt"

	_, err := s.dbPool.Exec(ctx,
		`SELECT log_admin_login($1, $2, NULLIF($3, '')::inet, $4, $5, $6)`,
		utils.NilIfZero(a.ProviderID), a.Action, a.IPAddress, utils.NilIfZero(a.UserAgent), a.Success, utils.NilIfZero(a.ErrorMessage))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
