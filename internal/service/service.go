// Package service contains the membership business logic.
//
//	Handler (HTTP)  →  MembershipService  →  repository.Store (SQL)
//	                          ↘ policy.CanPerform
//	                          ↘ auth.SessionManager / auth.PasswordService
//
// Every operation takes a model.Caller describing who is asking. The
// service asks the policy package whether the caller may act, runs the
// change and its audit entry in one transaction, then mirrors the entry to
// the configured audit sink.
//
// ERRORS:
// Operations return *apperror.AppError values only. Anything else coming
// from storage is logged here with full detail and replaced by
// apperror.Unavailable, so no SQL or file path ever reaches a caller.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/audit"
	"github.com/sakif/rzn-members/internal/auth"
	"github.com/sakif/rzn-members/internal/metrics"
	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/policy"
	"github.com/sakif/rzn-members/internal/repository"
)

// DefaultHandlePrefix is the organizational tag carried by every handle.
const DefaultHandlePrefix = "RZN."

// Deps are the collaborators of MembershipService. Audit and Metrics are
// optional.
type Deps struct {
	Store        repository.Store
	Sessions     *auth.SessionManager
	Passwords    *auth.PasswordService
	Audit        audit.Sink
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	HandlePrefix string
}

// MembershipService implements every membership operation.
type MembershipService struct {
	store     repository.Store
	sessions  *auth.SessionManager
	passwords *auth.PasswordService
	sink      audit.Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	prefix    string
	now       func() time.Time
}

func NewMembershipService(d Deps) *MembershipService {
	sink := d.Audit
	if sink == nil {
		sink = audit.Discard{}
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	prefix := d.HandlePrefix
	if prefix == "" {
		prefix = DefaultHandlePrefix
	}

	return &MembershipService{
		store:     d.Store,
		sessions:  d.Sessions,
		passwords: d.Passwords,
		sink:      sink,
		metrics:   d.Metrics,
		logger:    logger,
		prefix:    prefix,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// HandlePrefix returns the prefix added to handles.
func (s *MembershipService) HandlePrefix() string {
	return s.prefix
}

// Sessions exposes the session registry so the HTTP layer can resolve cookies.
func (s *MembershipService) Sessions() *auth.SessionManager {
	return s.sessions
}

// finish records the outcome of op and makes sure only AppErrors escape.
func (s *MembershipService) finish(ctx context.Context, op string, err error) error {
	if err == nil {
		s.metrics.RecordOperation(op, "ok")
		return nil
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		s.logger.ErrorContext(ctx, "storage failure",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
		appErr = apperror.Unavailable()
	}
	if errors.Is(appErr, policy.ErrUnknownAction) {
		s.logger.ErrorContext(ctx, "authorization requested for an unknown action",
			slog.String("operation", op),
			slog.String("error", appErr.Err.Error()),
		)
	}

	s.metrics.RecordOperation(op, apperror.Kind(appErr))
	return appErr
}

// mirror forwards committed entries to the audit sink.
func (s *MembershipService) mirror(ctx context.Context, entries ...model.AuditEntry) {
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = s.now()
		}
		if err := s.sink.Append(ctx, e); err != nil {
			s.metrics.RecordAuditSinkError()
			s.logger.WarnContext(ctx, "audit sink rejected entry",
				slog.String("action", e.Action),
				slog.String("error", err.Error()),
			)
		}
	}
}

// actor returns the caller's identity fields for a policy request.
func actor(c model.Caller) (id string, role model.Role) {
	if c.Identity == nil {
		return "", ""
	}
	return c.Identity.UserID, c.Identity.Role
}
