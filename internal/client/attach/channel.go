// Package attach moves binary attachments between the local store and the
// remote document service on a path decoupled from metadata sync: uploads
// happen only after the owning document has been metadata-synced, and
// downloads happen lazily, one attachment at a time, when a caller asks to
// display one.
package attach

import (
	"context"
	"errors"
	"fmt"

	"github.com/hseops/fieldsafe/internal/client/remote"
	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/logging"
	"golang.org/x/sync/errgroup"
)

// defaultUploadLimit bounds concurrent attachment uploads in one pass.
const defaultUploadLimit = 4

// Channel is the secondary sync path for attachment bytes.
type Channel struct {
	docs   *store.DocumentRepository
	blobs  *store.AttachmentRepository
	remote remote.Store
	logger logging.Logger
	limit  int
}

// New builds a channel over an opened store and a remote client.
func New(st *store.Store, rem remote.Store, logger logging.Logger) *Channel {
	return &Channel{
		docs:   st.Documents,
		blobs:  st.Attachments,
		remote: rem,
		logger: logger.With("component", "attach"),
		limit:  defaultUploadLimit,
	}
}

// Attach stores a new attachment locally under the next sequential name
// (photo_0, photo_1, ...). The owning document must exist and not be a
// tombstone.
func (c *Channel) Attach(ctx context.Context, docID, contentType string, data []byte) (string, error) {
	doc, err := c.docs.Get(ctx, docID)
	if err != nil {
		return "", err
	}
	if doc.Deleted {
		return "", common.ErrDeleted
	}

	name, err := c.blobs.NextName(ctx, docID)
	if err != nil {
		return "", err
	}
	blob := &store.Blob{DocID: docID, Name: name, ContentType: contentType, Data: data}
	if err := c.blobs.Put(ctx, blob); err != nil {
		return "", err
	}
	return name, nil
}

// UploadPending uploads every attachment whose owning document has already
// been metadata-synced, with bounded parallelism. Success is recorded per
// name, so a partially uploaded document is fine: its metadata is synced and
// the remaining photos go out on a later pass.
func (c *Channel) UploadPending(ctx context.Context) (int, error) {
	pending, err := c.blobs.ListPending(ctx)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.limit)

	uploaded := make(chan *store.Blob, len(pending))
	for _, blob := range pending {
		g.Go(func() error {
			doc, err := c.docs.Get(gctx, blob.DocID)
			if err != nil {
				return err
			}
			if err := c.remote.PutAttachment(gctx, doc.Type, blob.DocID, blob.Name, blob.ContentType, blob.Data); err != nil {
				return fmt.Errorf("uploading %s/%s: %w", blob.DocID, blob.Name, err)
			}
			uploaded <- blob
			return nil
		})
	}

	uploadErr := g.Wait()
	close(uploaded)

	// record whatever made it, even when the pass failed part-way
	count := 0
	for blob := range uploaded {
		if err := c.blobs.MarkUploaded(ctx, blob.DocID, blob.Name); err != nil {
			c.logger.Error(ctx, "failed to record uploaded attachment", "id", blob.DocID, "name", blob.Name, "error", err)
			continue
		}
		count++
	}
	if uploadErr != nil {
		return count, uploadErr
	}
	c.logger.Info(ctx, "attachment upload pass finished", "uploaded", count)
	return count, nil
}

// Open returns an attachment's bytes for display. Locally resident bytes are
// served as-is; otherwise the attachment is fetched lazily from the remote
// store and cached locally. Attachments are never bulk-prefetched.
func (c *Channel) Open(ctx context.Context, docID, name string) (*store.Blob, error) {
	blob, err := c.blobs.Get(ctx, docID, name)
	if err == nil {
		return blob, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	doc, err := c.docs.Get(ctx, docID)
	if err != nil {
		return nil, err
	}

	data, contentType, err := c.remote.FetchAttachment(ctx, doc.Type, docID, name)
	if err != nil {
		return nil, err
	}

	blob = &store.Blob{DocID: docID, Name: name, ContentType: contentType, Data: data, Uploaded: true}
	if err := c.blobs.Put(ctx, blob); err != nil {
		c.logger.Warn(ctx, "failed to cache fetched attachment", "id", docID, "name", name, "error", err)
	}
	return blob, nil
}

// Names lists the attachments recorded locally for a document.
func (c *Channel) Names(ctx context.Context, docID string) ([]store.BlobInfo, error) {
	return c.blobs.List(ctx, docID)
}
