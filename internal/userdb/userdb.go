// Package userdb mirrors the member roster into an optional Postgres users
// table.
package userdb

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/redevirtus/virtus/internal/model"
)

//go:embed schema.sql
var schemaSQL string

var ErrMissingID = errors.New("user id is required for upsert")

// User is a row of the users table.
type User struct {
	ID                string
	Email             string
	Username          string
	PasswordHash      string
	AdminType         string
	SpiritualMaturity string
	CommitmentEndDate *time.Time
	LeaderID          string
	ApprovalStatus    string
	IsApproved        bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FromMember builds the row for an approved member.
func FromMember(m model.Member) User {
	return User{
		ID:                m.ID,
		Email:             m.Email,
		Username:          m.Name,
		PasswordHash:      m.PasswordHash,
		AdminType:         string(m.AdminType),
		SpiritualMaturity: m.SpiritualMaturity,
		CommitmentEndDate: m.CommitmentEndDate,
		LeaderID:          m.LeaderID,
		ApprovalStatus:    string(model.SignupApproved),
		IsApproved:        true,
	}
}

// Open connects to databaseURL and checks the connection.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// Store reads and writes users. A Store without a pool logs a warning and
// does nothing.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func New(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// Available reports whether the store has a database behind it.
func (s *Store) Available() bool {
	return s.pool != nil
}

// EnsureSchema creates the users table when it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (s *Store) UpsertUser(ctx context.Context, u User) error {
	if u.ID == "" {
		return ErrMissingID
	}
	if s.pool == nil {
		s.logger.Warn("cannot upsert user: database not available")
		return nil
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, admin_type, spiritual_maturity,
			commitment_end_date, leader_id, approval_status, is_approved)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			admin_type = EXCLUDED.admin_type,
			spiritual_maturity = EXCLUDED.spiritual_maturity,
			commitment_end_date = EXCLUDED.commitment_end_date,
			leader_id = EXCLUDED.leader_id,
			approval_status = EXCLUDED.approval_status,
			is_approved = EXCLUDED.is_approved,
			updated_at = now()`,
		u.ID, u.Email, u.Username, nullString(u.PasswordHash), nullString(u.AdminType),
		nullString(u.SpiritualMaturity), u.CommitmentEndDate, nullString(u.LeaderID),
		u.ApprovalStatus, u.IsApproved,
	)
	if err != nil {
		s.logger.Error("failed to upsert user", "id", u.ID, "error", err)
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// GetUser returns the user with id, or nil when there is none.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	if s.pool == nil {
		s.logger.Warn("cannot get user: database not available")
		return nil, nil
	}

	var u User
	var passwordHash, adminType, maturity, leaderID *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, username, password_hash, admin_type, spiritual_maturity,
			commitment_end_date, leader_id, approval_status, is_approved, created_at, updated_at
		FROM users WHERE id = $1 LIMIT 1`, id,
	).Scan(&u.ID, &u.Email, &u.Username, &passwordHash, &adminType, &maturity,
		&u.CommitmentEndDate, &leaderID, &u.ApprovalStatus, &u.IsApproved, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.PasswordHash = deref(passwordHash)
	u.AdminType = deref(adminType)
	u.SpiritualMaturity = deref(maturity)
	u.LeaderID = deref(leaderID)
	return &u, nil
}

// MemberChanged mirrors m into the users table, logging failures.
func (s *Store) MemberChanged(ctx context.Context, m model.Member) {
	if s.pool == nil {
		return
	}
	if err := s.UpsertUser(ctx, FromMember(m)); err != nil {
		s.logger.Error("mirror member", "member_id", m.ID, "error", err)
	}
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
