package attach

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	gosync "sync"
	"testing"

	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
	"github.com/hseops/fieldsafe/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobRemote stubs the attachment half of the remote store.
type blobRemote struct {
	mu          gosync.Mutex
	blobs       map[string][]byte
	ctypes      map[string]string
	unreachable bool
	puts        int
	fetches     int
}

func newBlobRemote() *blobRemote {
	return &blobRemote{blobs: map[string][]byte{}, ctypes: map[string]string{}}
}

func (r *blobRemote) key(id, name string) string { return id + "/" + name }

func (r *blobRemote) Ping(ctx context.Context) error                          { return nil }
func (r *blobRemote) Login(ctx context.Context, username, pw string) error    { return nil }
func (r *blobRemote) Upsert(ctx context.Context, d *document.Document) (string, error) {
	return "1-stub", nil
}
func (r *blobRemote) ListSince(ctx context.Context, t document.Type, c string) ([]*document.Document, string, error) {
	return nil, c, nil
}
func (r *blobRemote) Fetch(ctx context.Context, t document.Type, id string) (*document.Document, error) {
	return nil, common.ErrNotFound
}

func (r *blobRemote) FetchAttachment(ctx context.Context, t document.Type, id, name string) ([]byte, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	data, ok := r.blobs[r.key(id, name)]
	if !ok {
		return nil, "", common.ErrNotFound
	}
	return append([]byte(nil), data...), r.ctypes[r.key(id, name)], nil
}

func (r *blobRemote) PutAttachment(ctx context.Context, t document.Type, id, name, contentType string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unreachable {
		return fmt.Errorf("%w: connection refused", common.ErrUnreachable)
	}
	r.puts++
	r.blobs[r.key(id, name)] = append([]byte(nil), data...)
	r.ctypes[r.key(id, name)] = contentType
	return nil
}

func setup(t *testing.T) (*Channel, *store.Store, *blobRemote) {
	t.Helper()
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rem := newBlobRemote()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	return New(s, rem, logger), s, rem
}

func storeDoc(t *testing.T, s *store.Store, dirty bool) *document.Document {
	t.Helper()
	i := &document.Inspection{
		Inspector: "A. Wijaya", Location: "Pit 3", Finding: "x",
		Severity: 1, Likelihood: 1, Status: document.StatusOpen,
	}
	doc, err := document.New(document.NewInspectionID(), i)
	require.NoError(t, err)
	doc.Dirty = dirty
	if !dirty {
		doc.Rev = "1-remoterev"
		require.NoError(t, s.Documents.ForcePut(context.Background(), doc))
		return doc
	}
	stored, err := s.Documents.Put(context.Background(), doc)
	require.NoError(t, err)
	return stored
}

func TestAttach_SequentialNames(t *testing.T) {
	c, s, _ := setup(t)
	ctx := context.Background()
	doc := storeDoc(t, s, true)

	name, err := c.Attach(ctx, doc.ID, "image/jpeg", []byte{1})
	require.NoError(t, err)
	assert.Equal(t, "photo_0", name)

	name, err = c.Attach(ctx, doc.ID, "image/jpeg", []byte{2})
	require.NoError(t, err)
	assert.Equal(t, "photo_1", name)
}

func TestAttach_RejectsTombstoneOwner(t *testing.T) {
	c, s, _ := setup(t)
	ctx := context.Background()
	doc := storeDoc(t, s, false)
	doc.Deleted = true
	require.NoError(t, s.Documents.ForcePut(ctx, doc))

	_, err := c.Attach(ctx, doc.ID, "image/jpeg", []byte{1})
	assert.ErrorIs(t, err, common.ErrDeleted)
}

func TestUploadPending_WaitsForMetadataSync(t *testing.T) {
	c, s, rem := setup(t)
	ctx := context.Background()

	doc := storeDoc(t, s, true) // still dirty: metadata not pushed yet
	_, err := c.Attach(ctx, doc.ID, "image/jpeg", []byte{0xff})
	require.NoError(t, err)

	n, err := c.UploadPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, rem.puts)

	// metadata sync completes; the photo goes out on the next pass
	clean := doc.Clone()
	clean.Dirty = false
	require.NoError(t, s.Documents.ForcePut(ctx, clean))

	n, err = c.UploadPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, rem.puts)

	// per-name success is durable: nothing left to upload
	n, err = c.UploadPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, rem.puts)
}

func TestUploadPending_PartialProgressSurvivesFailure(t *testing.T) {
	c, s, rem := setup(t)
	ctx := context.Background()

	doc := storeDoc(t, s, false)
	_, err := c.Attach(ctx, doc.ID, "image/jpeg", []byte{1})
	require.NoError(t, err)

	rem.unreachable = true
	_, err = c.UploadPending(ctx)
	assert.ErrorIs(t, err, common.ErrUnreachable)

	rem.unreachable = false
	n, err := c.UploadPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestOpen_LazyFetchAndCache(t *testing.T) {
	c, s, rem := setup(t)
	ctx := context.Background()

	doc := storeDoc(t, s, false)
	rem.blobs[doc.ID+"/photo_0"] = []byte{0xca, 0xfe}
	rem.ctypes[doc.ID+"/photo_0"] = "image/png"

	blob, err := c.Open(ctx, doc.ID, "photo_0")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, blob.Data)
	assert.Equal(t, "image/png", blob.ContentType)
	assert.Equal(t, 1, rem.fetches)

	// second open is served from the local cache
	blob, err = c.Open(ctx, doc.ID, "photo_0")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xca, 0xfe}, blob.Data)
	assert.Equal(t, 1, rem.fetches)
}

func TestOpen_MissingEverywhere(t *testing.T) {
	c, s, _ := setup(t)
	doc := storeDoc(t, s, false)

	_, err := c.Open(context.Background(), doc.ID, "photo_9")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
