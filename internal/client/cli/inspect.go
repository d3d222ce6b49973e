package cli

import (
	"context"
	"fmt"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/hseops/fieldsafe/internal/client/store"
	"github.com/hseops/fieldsafe/internal/document"
)

// AddInspection walks the user through the Minerba inspection form and saves
// the finding locally. Risk score and level are derived from severity and
// likelihood; the document is queued for the next sync.
func (a *App) AddInspection(ctx context.Context) error {
	inspector, err := getSimpleText(a.reader, "Enter inspector name", os.Stdout)
	if err != nil {
		return err
	}
	location, err := getSimpleText(a.reader, "Enter location", os.Stdout)
	if err != nil {
		return err
	}
	finding, err := GetMultiline(a.reader, "Describe the finding:", os.Stdout)
	if err != nil {
		return err
	}
	hazardCode, err := getSimpleText(a.reader, "Enter hazard code (optional)", os.Stdout)
	if err != nil {
		return err
	}
	severity, err := GetInt(a.reader, "Severity", 1, 5, os.Stdout)
	if err != nil {
		return err
	}
	likelihood, err := GetInt(a.reader, "Likelihood", 1, 5, os.Stdout)
	if err != nil {
		return err
	}
	recommendation, err := getSimpleText(a.reader, "Enter recommendation (optional)", os.Stdout)
	if err != nil {
		return err
	}
	pic, err := getSimpleText(a.reader, "Enter person in charge (optional)", os.Stdout)
	if err != nil {
		return err
	}

	draft := &document.Inspection{
		Inspector:      inspector,
		InspectorID:    a.userName,
		Location:       location,
		Finding:        finding,
		HazardCode:     hazardCode,
		Severity:       severity,
		Likelihood:     likelihood,
		Recommendation: recommendation,
		PIC:            pic,
	}

	doc, err := a.lifecycle.CreateInspection(ctx, draft)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	insp, _ := doc.Inspection()
	printlnFn(fmt.Sprintf("Saved %s (risk %d, %s)", doc.ID, insp.RiskScore, insp.RiskLevel))
	return nil
}

// List prints inspection findings. An optional first argument filters by
// status ("open" or "closed").
func (a *App) List(ctx context.Context, args []string) error {
	var filter store.QueryFilter
	if len(args) > 0 {
		switch strings.ToLower(args[0]) {
		case "open":
			filter.Status = document.StatusOpen
		case "closed":
			filter.Status = document.StatusClosed
		default:
			printlnFn("Usage: list [open|closed]")
			return nil
		}
	}

	docs, err := a.store.Documents.Query(ctx, document.TypeInspection, filter)
	if err != nil {
		log.Println(err.Error())
		return err
	}

	for _, doc := range docs {
		insp, err := doc.Inspection()
		if err != nil {
			continue
		}
		mark := " "
		if doc.Dirty {
			mark = "*"
		}
		printlnFn(fmt.Sprintf("%s%s  %-6s %-6s %-20s %s", mark, doc.ID, insp.Status, insp.RiskLevel, insp.Location, insp.Finding))
	}
	return nil
}

// Show prints one finding in full, including its attachment names.
func (a *App) Show(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: show <id>")
		return nil
	}

	doc, err := a.store.Documents.Get(ctx, args[0])
	if err != nil {
		log.Println(err.Error())
		return err
	}
	insp, err := doc.Inspection()
	if err != nil {
		log.Println(err.Error())
		return err
	}

	printlnFn(fmt.Sprintf("ID:          %s", doc.ID))
	printlnFn(fmt.Sprintf("Status:      %s", insp.Status))
	printlnFn(fmt.Sprintf("Inspector:   %s", insp.Inspector))
	printlnFn(fmt.Sprintf("Location:    %s", insp.Location))
	printlnFn(fmt.Sprintf("Finding:     %s", insp.Finding))
	printlnFn(fmt.Sprintf("Risk:        %d (%s)", insp.RiskScore, insp.RiskLevel))
	if insp.Recommendation != "" {
		printlnFn(fmt.Sprintf("Recommends:  %s", insp.Recommendation))
	}
	if insp.PIC != "" {
		printlnFn(fmt.Sprintf("PIC:         %s", insp.PIC))
	}
	if doc.Dirty {
		printlnFn("Pending sync: yes")
	}
	for _, entry := range insp.Audit {
		printlnFn(fmt.Sprintf("Audit:       %s by %s at %s %s", entry.Action, entry.Actor, entry.Timestamp.Format("2006-01-02 15:04"), entry.Comment))
	}

	infos, err := a.attach.Names(ctx, doc.ID)
	if err != nil {
		return err
	}
	for _, info := range infos {
		state := "uploaded"
		if !info.Uploaded {
			state = "pending"
		}
		printlnFn(fmt.Sprintf("Photo:       %s (%d bytes, %s)", info.Name, info.Size, state))
	}
	return nil
}

// Photo reads a local image file and attaches it to a finding.
func (a *App) Photo(ctx context.Context, args []string) error {
	if len(args) < 2 {
		printlnFn("Usage: photo <id> <file>")
		return nil
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(args[1]))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	name, err := a.attach.Attach(ctx, args[0], contentType, data)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	printlnFn(fmt.Sprintf("Attached %s", name))
	return nil
}

// Close marks a finding as closed with an audit comment.
func (a *App) Close(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: close <id>")
		return nil
	}

	comment, err := getSimpleText(a.reader, "Enter closing comment", os.Stdout)
	if err != nil {
		return err
	}

	actor := a.userName
	if actor == "" {
		actor = "local"
	}
	if _, err := a.lifecycle.CloseInspection(ctx, args[0], actor, comment); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	printlnFn("Closed")
	return nil
}

// Delete soft-deletes a finding. The tombstone propagates on the next sync.
func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		printlnFn("Usage: delete <id>")
		return nil
	}

	if _, err := a.lifecycle.SoftDelete(ctx, args[0]); err != nil {
		log.Printf("error: %v", err)
		return err
	}
	printlnFn("Deleted")
	return nil
}
