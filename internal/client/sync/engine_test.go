package sync

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/hseops/fieldsafe/internal/client/lifecycle"
	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
	"github.com/hseops/fieldsafe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type device struct {
	store     *store.Store
	engine    *Engine
	lifecycle *lifecycle.Manager
}

func newDevice(t *testing.T, rem *fakeRemote) *device {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	return &device{
		store:     s,
		engine:    New(s, rem, logger),
		lifecycle: lifecycle.New(s, logger),
	}
}

func draft() *document.Inspection {
	return &document.Inspection{
		Inspector:  "A. Wijaya",
		Location:   "Pit 3 haul road",
		Finding:    "berm height below standard",
		Severity:   2,
		Likelihood: 2,
	}
}

func TestPush_ClearsDirtyAndIsIdempotent(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)
	ctx := context.Background()

	doc, err := dev.lifecycle.CreateInspection(ctx, draft())
	require.NoError(t, err)

	report, err := dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)

	local, err := dev.store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, local.Dirty)

	remoteCopy := rem.get(doc.ID)
	require.NotNil(t, remoteCopy)
	assert.Equal(t, remoteCopy.Rev, local.Rev)
	firstRev := remoteCopy.Rev

	// a second session has nothing dirty to push and changes nothing remotely
	report, err = dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Pushed)
	assert.Equal(t, firstRev, rem.get(doc.ID).Rev)
	assert.Equal(t, 1, rem.upsertCount())
}

func TestPush_UnreachableAbortsAndPreservesDirty(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)
	ctx := context.Background()

	doc, err := dev.lifecycle.CreateInspection(ctx, draft())
	require.NoError(t, err)

	rem.setUnreachable(true)
	_, err = dev.engine.Run(ctx)
	assert.ErrorIs(t, err, common.ErrUnreachable)

	local, err := dev.store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, local.Dirty, "dirty state is the retry queue")

	// the next user-triggered session succeeds
	rem.setUnreachable(false)
	report, err := dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pushed)
}

func TestPush_RejectionIsTerminalForThatDocumentOnly(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)
	ctx := context.Background()

	bad, err := dev.lifecycle.CreateInspection(ctx, draft())
	require.NoError(t, err)
	good, err := dev.lifecycle.CreateInspection(ctx, draft())
	require.NoError(t, err)

	rem.rejects[bad.ID] = common.ErrRejected

	report, err := dev.engine.Run(ctx)
	require.NoError(t, err, "rejections do not abort the session")
	assert.Equal(t, 1, report.Pushed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, bad.ID, report.Errors[0].ID)

	localBad, err := dev.store.Documents.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.True(t, localBad.Dirty)

	localGood, err := dev.store.Documents.Get(ctx, good.ID)
	require.NoError(t, err)
	assert.False(t, localGood.Dirty)
}

func TestPull_NeverClobbersDirtyLocal(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)
	ctx := context.Background()

	// a different device's copy already sits on the remote
	other, err := document.New("ins_shared", &document.Inspection{
		Inspector: "B. Santoso", Location: "Workshop", Finding: "remote version",
		Severity: 1, Likelihood: 1, Status: document.StatusOpen,
	})
	require.NoError(t, err)
	_, err = rem.Upsert(ctx, other)
	require.NoError(t, err)

	// the same id exists locally with an unsynced edit
	localIns := &document.Inspection{
		Inspector: "A. Wijaya", Location: "Workshop", Finding: "local unsynced edit",
		Severity: 3, Likelihood: 3, Status: document.StatusOpen,
	}
	localIns.Recalculate()
	localDoc, err := document.New("ins_shared", localIns)
	require.NoError(t, err)
	localDoc, err = dev.store.Documents.Put(ctx, localDoc)
	require.NoError(t, err)
	require.True(t, localDoc.Dirty)

	report := NewReport()
	require.NoError(t, dev.engine.pullPass(ctx, report))
	assert.Equal(t, 1, report.Skipped)

	got, err := dev.store.Documents.Get(ctx, "ins_shared")
	require.NoError(t, err)
	assert.True(t, got.Dirty, "pull must leave dirty local state dirty")
	assert.True(t, got.PayloadEqual(localDoc), "pull must leave the local payload unchanged")
}

func TestPull_InsertsNewAndOverwritesClean(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)
	ctx := context.Background()

	doc, err := document.New("ins_remote", draft())
	require.NoError(t, err)
	rev, err := rem.Upsert(ctx, doc)
	require.NoError(t, err)

	report, err := dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pulled)

	local, err := dev.store.Documents.Get(ctx, "ins_remote")
	require.NoError(t, err)
	assert.False(t, local.Dirty)
	assert.Equal(t, rev, local.Rev)

	// remote moves on; the clean local copy is overwritten unconditionally
	updated := doc.Clone()
	ins, err := updated.Inspection()
	require.NoError(t, err)
	ins.Finding = "updated remotely"
	require.NoError(t, updated.SetPayload(ins))
	_, err = rem.Upsert(ctx, updated)
	require.NoError(t, err)

	report, err = dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pulled)

	local, err = dev.store.Documents.Get(ctx, "ins_remote")
	require.NoError(t, err)
	got, err := local.Inspection()
	require.NoError(t, err)
	assert.Equal(t, "updated remotely", got.Finding)
}

func TestPull_CursorAdvances(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)
	ctx := context.Background()

	first, err := document.New("ins_a", draft())
	require.NoError(t, err)
	_, err = rem.Upsert(ctx, first)
	require.NoError(t, err)

	report, err := dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pulled)

	// nothing new: the saved cursor keeps the next pull empty
	report, err = dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Pulled)

	second, err := document.New("ins_b", draft())
	require.NoError(t, err)
	_, err = rem.Upsert(ctx, second)
	require.NoError(t, err)

	report, err = dev.engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Pulled, "only the change after the cursor is pulled")
}

func TestTombstonePropagation(t *testing.T) {
	rem := newFakeRemote()
	devA := newDevice(t, rem)
	devB := newDevice(t, rem)
	ctx := context.Background()

	doc, err := devA.lifecycle.CreateInspection(ctx, draft())
	require.NoError(t, err)
	_, err = devA.engine.Run(ctx)
	require.NoError(t, err)
	_, err = devB.engine.Run(ctx)
	require.NoError(t, err)

	// A deletes; the tombstone propagates to B as an event, not an erasure
	_, err = devA.lifecycle.SoftDelete(ctx, doc.ID)
	require.NoError(t, err)
	_, err = devA.engine.Run(ctx)
	require.NoError(t, err)
	_, err = devB.engine.Run(ctx)
	require.NoError(t, err)

	listed, err := devB.store.Documents.Query(ctx, document.TypeInspection, store.QueryFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	got, err := devB.store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.False(t, got.Dirty)
}

func TestConvergenceAcrossDevices(t *testing.T) {
	rem := newFakeRemote()
	devA := newDevice(t, rem)
	devB := newDevice(t, rem)
	ctx := context.Background()

	doc, err := devA.lifecycle.CreateInspection(ctx, draft())
	require.NoError(t, err)
	_, err = devA.engine.Run(ctx)
	require.NoError(t, err)
	_, err = devB.engine.Run(ctx)
	require.NoError(t, err)

	aCopy, err := devA.store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	bCopy, err := devB.store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, aCopy.PayloadEqual(bCopy))

	// B closes the inspection; A converges after the next round trip
	_, err = devB.lifecycle.CloseInspection(ctx, doc.ID, "supervisor", "fixed")
	require.NoError(t, err)
	_, err = devB.engine.Run(ctx)
	require.NoError(t, err)
	_, err = devA.engine.Run(ctx)
	require.NoError(t, err)

	aCopy, err = devA.store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	ins, err := aCopy.Inspection()
	require.NoError(t, err)
	assert.Equal(t, document.StatusClosed, ins.Status)
	assert.Len(t, ins.Audit, 1)
}

func TestOfflineCreateThenReconnectScenario(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)
	ctx := context.Background()

	// created offline
	rem.setUnreachable(true)
	doc, err := dev.lifecycle.CreateInspection(ctx, draft())
	require.NoError(t, err)
	_, err = dev.engine.Run(ctx)
	require.Error(t, err)
	assert.Nil(t, rem.get(doc.ID))

	// reconnect and push
	rem.setUnreachable(false)
	_, err = dev.engine.Run(ctx)
	require.NoError(t, err)

	remoteCopy := rem.get(doc.ID)
	require.NotNil(t, remoteCopy)
	ins, err := remoteCopy.Inspection()
	require.NoError(t, err)
	assert.Equal(t, document.StatusOpen, ins.Status)

	local, err := dev.store.Documents.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.False(t, local.Dirty)

	// close and push again
	_, err = dev.lifecycle.CloseInspection(ctx, doc.ID, "supervisor", "verified")
	require.NoError(t, err)
	_, err = dev.engine.Run(ctx)
	require.NoError(t, err)

	remoteCopy = rem.get(doc.ID)
	ins, err = remoteCopy.Inspection()
	require.NoError(t, err)
	assert.Equal(t, document.StatusClosed, ins.Status)
	assert.Len(t, ins.Audit, 1)
}

func TestRun_SingleSessionAtATime(t *testing.T) {
	rem := newFakeRemote()
	dev := newDevice(t, rem)

	dev.engine.mu.Lock()
	_, err := dev.engine.Run(context.Background())
	assert.ErrorIs(t, err, ErrSessionInProgress)
	dev.engine.mu.Unlock()

	_, err = dev.engine.Run(context.Background())
	assert.NoError(t, err)
}
