// Package repository defines the storage contracts the service layer depends on.
//
// Services see only these interfaces. The sqldb package implements them for
// SQLite and Postgres; tests may substitute fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/rzn-members/internal/model"
)

// Order selects one of the fixed listing orders.
type Order int

const (
	// OrderDirectory: leader, admin, member, then handle ascending.
	OrderDirectory Order = iota
	// OrderRoster: leader, admin, then oldest first.
	OrderRoster
	// OrderNewestFirst: creation time descending.
	OrderNewestFirst
	// OrderRankNewestFirst: leader, admin, member, pending, then newest first.
	OrderRankNewestFirst
)

// UserFilter selects users for ListUsers. An empty Roles slice matches nothing.
type UserFilter struct {
	Roles []model.Role
	Order Order
}

// UserRepository reads and writes membership records.
//
// Create returns an *apperror.AppError wrapping ErrConflict when the handle or
// contact is already taken. Lookups return ErrNotFound for missing ids.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByHandle(ctx context.Context, handle string) (*model.User, error)
	List(ctx context.Context, filter UserFilter) ([]model.User, error)
	CountByRole(ctx context.Context, role model.Role) (int, error)

	// Approve moves a pending user to member. It returns ErrState when the
	// user exists but is not pending, and ErrNotFound when it does not exist.
	Approve(ctx context.Context, id, approverID string, at time.Time) error

	// DeletePending removes a user only while it is still pending, with the
	// same error contract as Approve.
	DeletePending(ctx context.Context, id string) error

	Delete(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id string, profile model.Profile) error
}

// AuditRepository is the append-only audit log. There is no update or delete.
type AuditRepository interface {
	Append(ctx context.Context, entry model.AuditEntry) error
	List(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// Tx is the view of the store inside a transaction.
type Tx interface {
	Users() UserRepository
	Audit() AuditRepository
}

// Store is the root storage handle.
//
// Store methods must not be called from inside a WithTx callback; use the Tx
// argument instead. SQLite runs with a single connection, so an outer call
// would wait for the transaction that is waiting for it.
type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
