package gateway

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jomei/notionapi"

	"estudiantes-gateway/models"
)

// Provider is the subset of the hosted database the gateway talks to.
// Implementations are bound to a single database.
type Provider interface {
	QueryDatabase(ctx context.Context, cursor notionapi.Cursor) (*notionapi.DatabaseQueryResponse, error)
	CreatePage(ctx context.Context, props notionapi.Properties) (*notionapi.Page, error)
	UpdateProperties(ctx context.Context, id notionapi.PageID, props notionapi.Properties) (*notionapi.Page, error)
	ArchivePage(ctx context.Context, id notionapi.PageID) (*notionapi.Page, error)
}

// Journal stores successful mutations
type Journal interface {
	Record(ctx context.Context, entry models.JournalEntry) error
	Recent(ctx context.Context, limit int64) ([]models.JournalEntry, error)
}

// Gateway maps student operations onto single provider calls
type Gateway struct {
	provider Provider
	journal  Journal
	now      func() time.Time
}

// New creates a Gateway. journal may be nil.
func New(provider Provider, journal Journal) *Gateway {
	return &Gateway{
		provider: provider,
		journal:  journal,
		now:      time.Now,
	}
}

// List returns every page in the database, following pagination cursors
func (g *Gateway) List(ctx context.Context) ([]notionapi.Page, error) {
	pages := []notionapi.Page{}
	var cursor notionapi.Cursor
	for {
		resp, err := g.provider.QueryDatabase(ctx, cursor)
		if err != nil {
			log.Printf("Error querying students: %v", err)
			return nil, upstream("query", err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}

// Create adds a new student page and returns its id
func (g *Gateway) Create(ctx context.Context, s models.NewStudent) (string, error) {
	if s.Matricula == "" || s.Nombre == "" {
		return "", invalid(MsgCreateRequired)
	}

	page, err := g.provider.CreatePage(ctx, studentProperties(s))
	if err != nil {
		log.Printf("Error creating student %s: %v", s.Matricula, err)
		return "", upstream("create", err)
	}
	id := string(page.ID)

	g.record(ctx, models.JournalEntry{Action: models.ActionCreate, ID: id})
	return id, nil
}

// PatchField sets a single editable property on a page
func (g *Gateway) PatchField(ctx context.Context, u models.FieldUpdate) error {
	if u.ID == "" || u.Campo == "" || isAbsent(u.Valor) {
		return invalid(MsgUpdateRequired)
	}
	build, ok := editableFields[models.Field(u.Campo)]
	if !ok {
		return invalid(MsgInvalidField)
	}
	prop := build(u.Valor)

	_, err := g.provider.UpdateProperties(ctx, notionapi.PageID(u.ID), notionapi.Properties{u.Campo: prop})
	if err != nil {
		log.Printf("Error updating field %s on %s: %v", u.Campo, u.ID, err)
		return upstream("update", err)
	}

	g.record(ctx, models.JournalEntry{Action: models.ActionEdit, ID: u.ID, Campo: u.Campo, Valor: u.Valor})
	return nil
}

// Archive soft-deletes a page. The provider has no hard delete.
func (g *Gateway) Archive(ctx context.Context, id string) error {
	if id == "" {
		return invalid(MsgIDRequired)
	}

	_, err := g.provider.ArchivePage(ctx, notionapi.PageID(id))
	if err != nil {
		log.Printf("Error archiving %s: %v", id, err)
		return upstream("archive", err)
	}

	g.record(ctx, models.JournalEntry{Action: models.ActionArchive, ID: id})
	return nil
}

// ClearField resets one score field to 0
func (g *Gateway) ClearField(ctx context.Context, c models.FieldClear) error {
	if c.ID == "" || c.Campo == "" {
		return invalid(MsgClearRequired)
	}
	if _, ok := clearableFields[models.Field(c.Campo)]; !ok {
		return invalid(MsgInvalidField)
	}

	_, err := g.provider.UpdateProperties(ctx, notionapi.PageID(c.ID), notionapi.Properties{c.Campo: numberProperty(0)})
	if err != nil {
		log.Printf("Error clearing field %s on %s: %v", c.Campo, c.ID, err)
		return upstream("clear", err)
	}

	g.record(ctx, models.JournalEntry{Action: models.ActionClear, ID: c.ID, Campo: c.Campo})
	return nil
}

// History returns the most recent journal entries, newest first
func (g *Gateway) History(ctx context.Context, limit int64) ([]models.JournalEntry, error) {
	if g.journal == nil {
		return []models.JournalEntry{}, nil
	}
	entries, err := g.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// record never fails the caller; the remote call already succeeded
func (g *Gateway) record(ctx context.Context, entry models.JournalEntry) {
	if g.journal == nil {
		return
	}
	entry.At = g.now().UTC()
	if err := g.journal.Record(ctx, entry); err != nil {
		log.Printf("Warning: could not journal %s on %s: %v", entry.Action, entry.ID, err)
	}
}
