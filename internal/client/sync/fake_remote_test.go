package sync

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	gosync "sync"

	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
)

// fakeRemote is an in-memory remote.Store with the same semantics as the
// real document service: server-assigned revisions, a monotonic change
// sequence as the listSince cursor, and idempotent upserts.
type fakeRemote struct {
	mu  gosync.Mutex
	seq int64

	docs    map[string]*remoteDoc
	blobs   map[string][]byte
	ctypes  map[string]string
	rejects map[string]error

	unreachable bool
	upserts     int
}

type remoteDoc struct {
	doc *document.Document
	seq int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:    map[string]*remoteDoc{},
		blobs:   map[string][]byte{},
		ctypes:  map[string]string{},
		rejects: map[string]error{},
	}
}

func (f *fakeRemote) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return fmt.Errorf("%w: connection refused", common.ErrUnreachable)
	}
	return nil
}

func (f *fakeRemote) Login(ctx context.Context, username, password string) error { return nil }

func (f *fakeRemote) Upsert(ctx context.Context, doc *document.Document) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unreachable {
		return "", fmt.Errorf("%w: connection refused", common.ErrUnreachable)
	}
	if err := f.rejects[doc.ID]; err != nil {
		return "", err
	}
	f.upserts++

	existing := f.docs[doc.ID]
	if existing != nil && existing.doc.PayloadEqual(doc) && existing.doc.Deleted == doc.Deleted {
		// unchanged payload: no-op acknowledgment, no new revision
		return existing.doc.Rev, nil
	}

	var gen int64 = 1
	if existing != nil {
		gen = document.RevGeneration(existing.doc.Rev) + 1
	}
	rev, err := document.NewRev(gen)
	if err != nil {
		return "", err
	}

	accepted := doc.Clone()
	accepted.Rev = rev
	accepted.Dirty = false
	f.seq++
	f.docs[doc.ID] = &remoteDoc{doc: accepted, seq: f.seq}
	return rev, nil
}

func (f *fakeRemote) ListSince(ctx context.Context, typ document.Type, cursor string) ([]*document.Document, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.unreachable {
		return nil, "", fmt.Errorf("%w: connection refused", common.ErrUnreachable)
	}

	since, _ := strconv.ParseInt(cursor, 10, 64)
	var changed []*remoteDoc
	for _, rd := range f.docs {
		if rd.doc.Type == typ && rd.seq > since {
			changed = append(changed, rd)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].seq < changed[j].seq })

	next := since
	result := make([]*document.Document, 0, len(changed))
	for _, rd := range changed {
		result = append(result, rd.doc.Clone())
		next = rd.seq
	}
	return result, strconv.FormatInt(next, 10), nil
}

func (f *fakeRemote) Fetch(ctx context.Context, typ document.Type, id string) (*document.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rd, ok := f.docs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return rd.doc.Clone(), nil
}

func blobKey(id, name string) string { return id + "/" + name }

func (f *fakeRemote) FetchAttachment(ctx context.Context, typ document.Type, id, name string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[blobKey(id, name)]
	if !ok {
		return nil, "", common.ErrNotFound
	}
	return append([]byte(nil), data...), f.ctypes[blobKey(id, name)], nil
}

func (f *fakeRemote) PutAttachment(ctx context.Context, typ document.Type, id, name, contentType string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unreachable {
		return fmt.Errorf("%w: connection refused", common.ErrUnreachable)
	}
	f.blobs[blobKey(id, name)] = append([]byte(nil), data...)
	f.ctypes[blobKey(id, name)] = contentType
	return nil
}

func (f *fakeRemote) setUnreachable(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable = v
}

func (f *fakeRemote) get(id string) *document.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	rd, ok := f.docs[id]
	if !ok {
		return nil
	}
	return rd.doc.Clone()
}

func (f *fakeRemote) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}
