package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
	"github.com/hseops/fieldsafe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Manager, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	return New(s, logger), s
}

func draft() *document.Inspection {
	return &document.Inspection{
		Inspector:  "A. Wijaya",
		Location:   "Pit 3 haul road",
		Finding:    "berm height below standard",
		Severity:   3,
		Likelihood: 4,
	}
}

func TestCreateInspection_DerivesRiskAndMarksDirty(t *testing.T) {
	m, s := setup(t)
	ctx := context.Background()

	doc, err := m.CreateInspection(ctx, draft())
	require.NoError(t, err)
	assert.True(t, doc.Dirty)

	ins, err := doc.Inspection()
	require.NoError(t, err)
	assert.Equal(t, document.StatusOpen, ins.Status)
	assert.Equal(t, 12, ins.RiskScore)
	assert.Equal(t, document.RiskMedium, ins.RiskLevel)

	got, err := s.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Dirty)
}

func TestCreateInspection_InvalidDraftRejected(t *testing.T) {
	m, _ := setup(t)

	d := draft()
	d.Severity = 7
	_, err := m.CreateInspection(context.Background(), d)
	assert.ErrorIs(t, err, common.ErrInvalidSeverity)
}

func TestUpdateInspection_RecomputesRisk(t *testing.T) {
	m, _ := setup(t)
	ctx := context.Background()

	doc, err := m.CreateInspection(ctx, draft())
	require.NoError(t, err)

	updated, err := m.UpdateInspection(ctx, doc.ID, func(i *document.Inspection) error {
		i.Severity = 5
		i.Likelihood = 5
		return nil
	})
	require.NoError(t, err)

	ins, err := updated.Inspection()
	require.NoError(t, err)
	assert.Equal(t, 25, ins.RiskScore)
	assert.Equal(t, document.RiskHigh, ins.RiskLevel)
	assert.True(t, updated.Dirty)
}

func TestCloseInspection_OnceOnly(t *testing.T) {
	m, _ := setup(t)
	ctx := context.Background()

	doc, err := m.CreateInspection(ctx, draft())
	require.NoError(t, err)

	closed, err := m.CloseInspection(ctx, doc.ID, "supervisor", "verified fixed")
	require.NoError(t, err)

	ins, err := closed.Inspection()
	require.NoError(t, err)
	assert.Equal(t, document.StatusClosed, ins.Status)
	require.Len(t, ins.Audit, 1)
	assert.Equal(t, "supervisor", ins.Audit[0].Actor)
	assert.Equal(t, "closed", ins.Audit[0].Action)

	// closing again is rejected and appends no duplicate audit entry
	_, err = m.CloseInspection(ctx, doc.ID, "supervisor", "again")
	assert.ErrorIs(t, err, common.ErrAlreadyClosed)

	got, err := m.docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	ins, err = got.Inspection()
	require.NoError(t, err)
	assert.Len(t, ins.Audit, 1)
}

func TestSoftDelete_TombstoneSemantics(t *testing.T) {
	m, s := setup(t)
	ctx := context.Background()

	doc, err := m.CreateInspection(ctx, draft())
	require.NoError(t, err)

	dead, err := m.SoftDelete(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, dead.Deleted)
	assert.True(t, dead.Dirty)

	// tombstones never appear in listings but stay reachable by id
	docs, err := s.Documents.Query(ctx, document.TypeInspection, store.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)

	got, err := s.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)

	// tombstones reject further edits
	_, err = m.SoftDelete(ctx, doc.ID)
	assert.ErrorIs(t, err, common.ErrDeleted)
	_, err = m.CloseInspection(ctx, doc.ID, "x", "")
	assert.ErrorIs(t, err, common.ErrDeleted)
	_, err = m.UpdateInspection(ctx, doc.ID, func(i *document.Inspection) error { return nil })
	assert.ErrorIs(t, err, common.ErrDeleted)
}

func TestSaveUser_CreateAndUpdate(t *testing.T) {
	m, _ := setup(t)
	ctx := context.Background()

	_, err := m.SaveUser(ctx, "budi", "Budi Santoso", "Inspector", "")
	assert.ErrorIs(t, err, common.ErrInvalidPayload, "new user needs a password")

	doc, err := m.SaveUser(ctx, "budi", "Budi Santoso", "Inspector", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "user_budi", doc.ID)
	assert.True(t, doc.Dirty)

	u, err := doc.User()
	require.NoError(t, err)
	assert.True(t, u.VerifyPassword("s3cret"))

	// updating without a password keeps the old hash
	doc, err = m.SaveUser(ctx, "budi", "Budi S.", "Supervisor", "")
	require.NoError(t, err)
	u, err = doc.User()
	require.NoError(t, err)
	assert.Equal(t, "Supervisor", u.Role)
	assert.True(t, u.VerifyPassword("s3cret"))
}
