package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/repository"
)

// MsgDuplicateUser is the conflict message for a taken handle or contact.
// The caller is not told which of the two collided.
const MsgDuplicateUser = "Username or email already exists"

const userColumns = `id, handle, contact, password_hash, role,
	avatar, facebook_url, youtube_url, tiktok_url,
	approved_by, approved_at, created_at, updated_at`

const rankExpr = `CASE role WHEN 'leader' THEN 1 WHEN 'admin' THEN 2 WHEN 'member' THEN 3 ELSE 4 END`

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	q DBTX
	d dialect
}

// Create inserts a user. ID and timestamps are filled in when empty.
func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = model.RolePending
	}

	_, err := r.q.ExecContext(ctx, r.d.rebind(
		`INSERT INTO users (id, handle, contact, password_hash, role,
			avatar, facebook_url, youtube_url, tiktok_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		user.ID,
		user.Handle,
		user.Contact,
		user.PasswordHash,
		string(user.Role),
		user.Profile.Avatar,
		user.Profile.FacebookURL,
		user.Profile.YouTubeURL,
		user.Profile.TikTokURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if r.d.isUniqueViolation(err) {
			return apperror.Conflict(MsgDuplicateUser)
		}
		return fmt.Errorf("sqldb: inserting user %s: %w", user.Handle, err)
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("member", id)
		}
		return nil, fmt.Errorf("sqldb: getting user %s: %w", id, err)
	}
	return u, nil
}

func (r *userRepo) GetByHandle(ctx context.Context, handle string) (*model.User, error) {
	row := r.q.QueryRowContext(ctx, r.d.rebind(
		`SELECT `+userColumns+` FROM users WHERE handle = ?`), handle)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("member", handle)
		}
		return nil, fmt.Errorf("sqldb: getting user by handle: %w", err)
	}
	return u, nil
}

// List returns users whose role is in filter.Roles, in filter.Order.
func (r *userRepo) List(ctx context.Context, filter repository.UserFilter) ([]model.User, error) {
	if len(filter.Roles) == 0 {
		return []model.User{}, nil
	}

	args := make([]any, len(filter.Roles))
	for i, role := range filter.Roles {
		args[i] = string(role)
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE role IN (` + placeholders(len(args)) + `) ORDER BY ` + orderClause(filter.Order)

	rows, err := r.q.QueryContext(ctx, r.d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("sqldb: listing users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqldb: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqldb: iterating user rows: %w", err)
	}
	return users, nil
}

func orderClause(o repository.Order) string {
	switch o {
	case repository.OrderRoster:
		return rankExpr + `, created_at ASC, id ASC`
	case repository.OrderNewestFirst:
		return `created_at DESC, id DESC`
	case repository.OrderRankNewestFirst:
		return rankExpr + `, created_at DESC, id DESC`
	default:
		return rankExpr + `, handle ASC`
	}
}

func (r *userRepo) CountByRole(ctx context.Context, role model.Role) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, r.d.rebind(
		`SELECT COUNT(*) FROM users WHERE role = ?`), string(role)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqldb: counting %s users: %w", role, err)
	}
	return n, nil
}

// Approve is a single conditional UPDATE, so two admins approving the same
// registration at once cannot both succeed.
func (r *userRepo) Approve(ctx context.Context, id, approverID string, at time.Time) error {
	at = at.UTC()
	res, err := r.q.ExecContext(ctx, r.d.rebind(
		`UPDATE users SET role = 'member', approved_by = ?, approved_at = ?, updated_at = ?
		 WHERE id = ? AND role = 'pending'`),
		approverID, at, at, id,
	)
	if err != nil {
		return fmt.Errorf("sqldb: approving user %s: %w", id, err)
	}
	return r.explainNoop(ctx, res, id)
}

func (r *userRepo) DeletePending(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(
		`DELETE FROM users WHERE id = ? AND role = 'pending'`), id)
	if err != nil {
		return fmt.Errorf("sqldb: declining user %s: %w", id, err)
	}
	return r.explainNoop(ctx, res, id)
}

// explainNoop turns a zero-row conditional write into NotFound or State.
func (r *userRepo) explainNoop(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}

	var role string
	err = r.q.QueryRowContext(ctx, r.d.rebind(`SELECT role FROM users WHERE id = ?`), id).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return apperror.NotFound("member", id)
	}
	if err != nil {
		return fmt.Errorf("sqldb: getting role of user %s: %w", id, err)
	}
	return apperror.InvalidState("Member is not pending approval")
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("sqldb: deleting user %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("member", id)
	}
	return nil
}

func (r *userRepo) UpdateProfile(ctx context.Context, id string, p model.Profile) error {
	res, err := r.q.ExecContext(ctx, r.d.rebind(
		`UPDATE users SET avatar = ?, facebook_url = ?, youtube_url = ?, tiktok_url = ?, updated_at = ?
		 WHERE id = ?`),
		p.Avatar, p.FacebookURL, p.YouTubeURL, p.TikTokURL, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqldb: updating profile of user %s: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqldb: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("member", id)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*model.User, error) {
	var (
		u          model.User
		role       string
		approvedBy sql.NullString
		approvedAt sql.NullTime
	)

	err := s.Scan(
		&u.ID,
		&u.Handle,
		&u.Contact,
		&u.PasswordHash,
		&role,
		&u.Profile.Avatar,
		&u.Profile.FacebookURL,
		&u.Profile.YouTubeURL,
		&u.Profile.TikTokURL,
		&approvedBy,
		&approvedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Role = model.Role(role)
	u.ApprovedBy = approvedBy.String
	if approvedAt.Valid {
		t := approvedAt.Time
		u.ApprovedAt = &t
	}
	return &u, nil
}
