package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/rzn-members/internal/model"
)

func TestAudit_AppendAndList(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	for i, action := range []string{"register", "login", "update_profile"} {
		require.NoError(t, db.Audit().Append(ctx, model.AuditEntry{
			ActorID:   "user-1",
			Action:    action,
			Detail:    "detail " + action,
			Origin:    "203.0.113.7",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	entries, err := db.Audit().List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "update_profile", entries[0].Action, "newest first")
	assert.Equal(t, "register", entries[2].Action)
	assert.Equal(t, "203.0.113.7", entries[0].Origin)
	assert.NotZero(t, entries[0].ID)

	limited, err := db.Audit().List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// Audit rows are not tied to users, so history survives a deletion.
func TestAudit_SurvivesUserDeletion(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	u := createTestUser(t, db, "RZN.gone", model.RoleMember)

	require.NoError(t, db.Audit().Append(ctx, model.AuditEntry{ActorID: u.ID, Action: "login", Detail: "User logged in"}))
	require.NoError(t, db.Users().Delete(ctx, u.ID))

	entries, err := db.Audit().List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, u.ID, entries[0].ActorID)
}
