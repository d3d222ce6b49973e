package cli

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/common"
	"github.com/hseops/fieldsafe/internal/document"
)

// Sync runs a full synchronization session: documents first, then pending
// photo uploads. A report summary is printed; per-document failures are
// listed but do not abort the session.
func (a *App) Sync(ctx context.Context) error {
	report, err := a.engine.Run(ctx)
	if err != nil {
		if errors.Is(err, common.ErrUnreachable) {
			a.setMode(ModeOffline)
		}
		log.Println(err.Error())
		return err
	}
	a.setMode(ModeOnline)

	uploaded, err := a.attach.UploadPending(ctx)
	if err != nil {
		log.Println(err.Error())
	}

	printlnFn(fmt.Sprintf("Synced: %d pushed, %d pulled, %d skipped, %d photos uploaded",
		report.Pushed, report.Pulled, report.Skipped, uploaded))
	for _, e := range report.Errors {
		printlnFn(fmt.Sprintf("  %s: %s", e.ID, e.Err))
	}
	return nil
}

// Status prints the findings dashboard and how much local work is waiting
// for the next sync.
func (a *App) Status(ctx context.Context) error {
	dirtyCount := 0
	for _, typ := range document.Types {
		dirty, err := a.store.Documents.ListDirty(ctx, typ)
		if err != nil {
			log.Println(err.Error())
			return err
		}
		dirtyCount += len(dirty)
	}
	pending, err := a.store.Attachments.ListPending(ctx)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	findings, err := a.store.Documents.Query(ctx, document.TypeInspection, store.QueryFilter{})
	if err != nil {
		log.Println(err.Error())
		return err
	}
	var open, closed, high int
	for _, d := range findings {
		insp, err := d.Inspection()
		if err != nil {
			continue
		}
		switch insp.Status {
		case document.StatusOpen:
			open++
		case document.StatusClosed:
			closed++
		}
		if insp.RiskLevel == document.RiskHigh {
			high++
		}
	}

	printlnFn(fmt.Sprintf("Mode: %s", a.Mode))
	printlnFn(fmt.Sprintf("Findings: %d total, %d open, %d closed, %d high risk",
		len(findings), open, closed, high))
	printlnFn(fmt.Sprintf("Documents pending sync: %d", dirtyCount))
	printlnFn(fmt.Sprintf("Photos pending upload: %d", len(pending)))
	return nil
}
