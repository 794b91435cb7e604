package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sakif/rzn-members/internal/apperror"
	"github.com/sakif/rzn-members/internal/model"
)

const seedYAML = `
members:
  - handle: founder
    contact: founder@example.com
    secret: change-me
    role: leader
  - handle: RZN.helper
    contact: helper@example.com
    secret: change-me
    role: admin
  - handle: second
    contact: second@example.com
    secret: change-me
    role: Admin
`

func TestSeed_CreatesAndIsIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	res, err := e.svc.Seed(ctx, []byte(seedYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"RZN.founder", "RZN.helper", "RZN.second"}, res.Created)
	assert.Empty(t, res.Skipped)

	founder, err := e.db.Users().GetByHandle(ctx, "RZN.founder")
	require.NoError(t, err)
	assert.Equal(t, model.RoleLeader, founder.Role)

	res, err = e.svc.Seed(ctx, []byte(seedYAML))
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Skipped, 3)

	n, err := e.db.Users().CountByRole(ctx, model.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// Seeded accounts skip approval.
	login, err := e.svc.Authenticate(ctx, anon(), "helper", "change-me")
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, login.Identity.Role)

	entries, err := e.db.Audit().List(ctx, 10)
	require.NoError(t, err)
	seeded := 0
	for _, en := range entries {
		if en.Action == "seed_member" {
			seeded++
			assert.Equal(t, "seed", en.Origin)
		}
	}
	assert.Equal(t, 3, seeded)
}

func TestSeed_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		sentinel error
		msg      string
	}{
		{
			name: "two leaders",
			doc: `members:
  - {handle: a, contact: a@x.com, secret: s, role: leader}
  - {handle: b, contact: b@x.com, secret: s, role: leader}`,
			sentinel: apperror.ErrValidation,
			msg:      MsgSeedMultipleLeaders,
		},
		{
			name:     "pending role",
			doc:      `members: [{handle: a, contact: a@x.com, secret: s, role: pending}]`,
			sentinel: apperror.ErrValidation,
			msg:      MsgSeedPendingRole,
		},
		{
			name:     "unknown role",
			doc:      `members: [{handle: a, contact: a@x.com, secret: s, role: owner}]`,
			sentinel: apperror.ErrValidation,
		},
		{
			name:     "unknown key",
			doc:      `members: [{handle: a, contact: a@x.com, password: s, role: admin}]`,
			sentinel: apperror.ErrValidation,
		},
		{
			name:     "missing secret",
			doc:      `members: [{handle: a, contact: a@x.com, role: admin}]`,
			sentinel: apperror.ErrValidation,
			msg:      MsgFieldsRequired,
		},
		{
			name: "duplicate handle",
			doc: `members:
  - {handle: a, contact: a@x.com, secret: s, role: admin}
  - {handle: RZN.a, contact: b@x.com, secret: s, role: member}`,
			sentinel: apperror.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)

			_, err := e.svc.Seed(context.Background(), []byte(tt.doc))
			appErr := requireAppError(t, err, tt.sentinel)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, appErr.Message)
			}

			all, err := e.db.Users().CountByRole(context.Background(), model.RoleAdmin)
			require.NoError(t, err)
			assert.Zero(t, all)
		})
	}
}

func TestSeed_DifferentLeaderExists(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.addUser(t, "incumbent", model.RoleLeader)

	_, err := e.svc.Seed(ctx, []byte(seedYAML))
	appErr := requireAppError(t, err, apperror.ErrConflict)
	assert.Equal(t, MsgSeedLeaderExists, appErr.Message)

	// Nothing from the file was applied.
	_, err = e.db.Users().GetByHandle(ctx, "RZN.helper")
	requireAppError(t, err, apperror.ErrNotFound)
}

func TestLoadSeedFile(t *testing.T) {
	e := newTestEnv(t)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o600))

	res, err := e.svc.LoadSeedFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, res.Created, 3)

	_, err = e.svc.LoadSeedFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// =========================================================================
// ROSTER EXPORT
// =========================================================================

func TestExportRoster(t *testing.T) {
	e := newTestEnv(t)
	c := newCast(t, e)
	ctx := context.Background()
	_, err := e.svc.UpdateProfile(ctx, e.callerFor(t, c.member), ProfileInput{
		YouTubeURL: strPtr("https://youtube.com/@member"),
	})
	require.NoError(t, err)

	out, err := e.svc.ExportRoster(ctx)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "@example.com")

	var doc RosterExport
	require.NoError(t, yaml.Unmarshal(out, &doc))
	require.Len(t, doc.Members, 4)
	assert.Equal(t, c.leader.Handle, doc.Members[0].Handle)
	assert.Equal(t, "leader", doc.Members[0].Role)
	assert.Equal(t, "https://youtube.com/@member", doc.Members[3].YouTubeURL)
	for _, m := range doc.Members {
		assert.NotEqual(t, c.pending.Handle, m.Handle)
		assert.NotEmpty(t, m.Since)
	}
}
