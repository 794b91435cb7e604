package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/rzn-members/internal/model"
)

type failingSink struct{ err error }

func (f failingSink) Append(context.Context, model.AuditEntry) error { return f.err }

type recordingSink struct{ entries []model.AuditEntry }

func (r *recordingSink) Append(_ context.Context, e model.AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func TestEntry_CarriesOrigin(t *testing.T) {
	c := model.Caller{Origin: "198.51.100.4"}
	e := Entry(c, "u1", ActionApprove, ApproveDetail("u2"))

	assert.Equal(t, "u1", e.ActorID)
	assert.Equal(t, "approve_member", e.Action)
	assert.Equal(t, "Approved member ID: u2", e.Detail)
	assert.Equal(t, "198.51.100.4", e.Origin)
}

func TestDetails(t *testing.T) {
	assert.Equal(t, "Declined member ID: u9", DeclineDetail("u9"))
	assert.Equal(t, "Deleted member: RZN.bob", DeleteByHandleDetail("RZN.bob"))
	assert.Equal(t, "Deleted member ID: u9", DeleteByIDDetail("u9"))
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)))

	err := sink.Append(context.Background(), model.AuditEntry{ActorID: "u1", Action: ActionLogin, Detail: LoginDetail})
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "action=login")
	assert.Contains(t, buf.String(), `detail="User logged in"`)
}

func TestFanout(t *testing.T) {
	rec := &recordingSink{}
	boom := errors.New("boom")
	f := Fanout{rec, failingSink{err: boom}, Discard{}}

	err := f.Append(context.Background(), model.AuditEntry{Action: ActionLogout})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, rec.entries, 1, "a failing sink must not stop delivery to others")

	assert.NoError(t, Fanout{}.Append(context.Background(), model.AuditEntry{}))
}
