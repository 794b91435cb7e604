package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/audit"
	"github.com/sakif/rzn-members/internal/auth"
	"github.com/sakif/rzn-members/internal/model"
	"github.com/sakif/rzn-members/internal/repository"
)

// SEED FILE:
// A fresh installation has nobody who can approve registrations, so the
// first staff accounts come from a YAML file:
//
//	members:
//	  - handle: founder
//	    contact: founder@example.com
//	    secret: change-me
//	    role: leader
//	  - handle: helper
//	    contact: helper@example.com
//	    secret: change-me
//	    role: admin
//
// Seeding is idempotent. Handles that already exist are skipped, so the
// same file can be applied on every start.

// SeedMember is one account in a seed file.
type SeedMember struct {
	Handle  string `yaml:"handle"`
	Contact string `yaml:"contact"`
	Secret  string `yaml:"secret"`
	Role    string `yaml:"role"`
}

// SeedFile is the top-level YAML document.
type SeedFile struct {
	Members []SeedMember `yaml:"members"`
}

// SeedResult reports which handles were created and which already existed.
type SeedResult struct {
	Created []string
	Skipped []string
}

// Seed messages.
const (
	MsgSeedMultipleLeaders = "A seed file may name at most one leader"
	MsgSeedLeaderExists    = "A different leader already exists"
	MsgSeedPendingRole     = "Seeded accounts cannot be pending"
)

// LoadSeedFile reads and applies a seed file from disk.
func (s *MembershipService) LoadSeedFile(ctx context.Context, path string) (*SeedResult, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from an operator flag
	if err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}
	return s.Seed(ctx, data)
}

// ParseSeed decodes a seed document, rejecting unknown keys.
func ParseSeed(data []byte) (*SeedFile, error) {
	var f SeedFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, apperror.ValidationFailed("", fmt.Sprintf("invalid seed file: %v", err))
	}
	return &f, nil
}

// Seed creates the accounts in data that do not exist yet. Seeded accounts
// skip approval. The whole file is applied in one transaction, so a bad
// entry leaves the store untouched.
func (s *MembershipService) Seed(ctx context.Context, data []byte) (*SeedResult, error) {
	const op = "seed"

	file, err := ParseSeed(data)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}

	users, leader, err := s.prepareSeed(file)
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}

	c := model.Anonymous("seed")
	result := &SeedResult{}
	var entries []model.AuditEntry

	err = s.store.WithTx(ctx, func(tx repository.Tx) error {
		if leader != "" {
			existing, err := tx.Users().List(ctx, repository.UserFilter{
				Roles: []model.Role{model.RoleLeader},
				Order: repository.OrderRoster,
			})
			if err != nil {
				return err
			}
			for _, u := range existing {
				if u.Handle != leader {
					return apperror.Conflict(MsgSeedLeaderExists)
				}
			}
		}

		for _, u := range users {
			_, err := tx.Users().GetByHandle(ctx, u.Handle)
			switch {
			case err == nil:
				result.Skipped = append(result.Skipped, u.Handle)
				continue
			case !errors.Is(err, apperror.ErrNotFound):
				return err
			}

			if err := tx.Users().Create(ctx, u); err != nil {
				return err
			}
			entry := audit.Entry(c, u.ID, audit.ActionSeed, audit.SeedDetail(u.Handle, u.Role))
			if err := tx.Audit().Append(ctx, entry); err != nil {
				return err
			}
			entries = append(entries, entry)
			result.Created = append(result.Created, u.Handle)
		}
		return nil
	})
	if err != nil {
		return nil, s.finish(ctx, op, err)
	}
	s.mirror(ctx, entries...)

	s.logger.InfoContext(ctx, "seed applied",
		slog.Int("created", len(result.Created)),
		slog.Int("skipped", len(result.Skipped)),
	)
	return result, s.finish(ctx, op, nil)
}

// prepareSeed validates every entry and hashes its secret. It returns the
// users to create and the canonical handle of the leader, if any.
func (s *MembershipService) prepareSeed(file *SeedFile) ([]*model.User, string, error) {
	var (
		users  []*model.User
		leader string
		seen   = make(map[string]bool)
	)

	for i, m := range file.Members {
		field := fmt.Sprintf("members[%d]", i)

		handle := model.CanonicalHandle(s.prefix, m.Handle)
		contact := strings.TrimSpace(m.Contact)
		switch {
		case handle == "" || contact == "" || m.Secret == "":
			return nil, "", apperror.ValidationFailed(field, MsgFieldsRequired)
		case len(m.Secret) > auth.MaxSecretBytes:
			return nil, "", apperror.ValidationFailed(field, MsgSecretTooLong)
		case !validContact(contact):
			return nil, "", apperror.ValidationFailed(field, MsgContactInvalid)
		case seen[handle]:
			return nil, "", apperror.ValidationFailed(field, "duplicate handle "+handle)
		}
		seen[handle] = true

		role, err := model.ParseRole(m.Role)
		if err != nil {
			return nil, "", apperror.ValidationFailed(field, err.Error())
		}
		if role == model.RolePending {
			return nil, "", apperror.ValidationFailed(field, MsgSeedPendingRole)
		}
		if role == model.RoleLeader {
			if leader != "" {
				return nil, "", apperror.ValidationFailed(field, MsgSeedMultipleLeaders)
			}
			leader = handle
		}

		hash, err := s.passwords.Hash(m.Secret)
		if err != nil {
			return nil, "", fmt.Errorf("hashing seed secret: %w", err)
		}

		users = append(users, &model.User{
			Handle:       handle,
			Contact:      contact,
			PasswordHash: hash,
			Role:         role,
			CreatedAt:    s.now(),
		})
	}
	return users, leader, nil
}
