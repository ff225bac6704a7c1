package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/digitarc/pkg/directory"
	"github.com/vanderheijden86/digitarc/pkg/model"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

// Service is the part of the directory API the app talks to.
// *directory.Client implements it.
type Service interface {
	tree.Directory
	Create(ctx context.Context, in model.CollectionCreate) (model.Collection, error)
	Update(ctx context.Context, id string, in model.CollectionUpdate) (model.Collection, error)
	Delete(ctx context.Context, id string) error
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListRecords(ctx context.Context, q directory.RecordQuery) ([]model.Record, error)
}

// WriteOperation is the kind of mutation performed.
type WriteOperation int

const (
	WriteCreate WriteOperation = iota
	WriteUpdate
	WriteDelete
	WriteSetType
)

func (op WriteOperation) String() string {
	switch op {
	case WriteCreate:
		return "create"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	case WriteSetType:
		return "set type"
	}
	return "unknown"
}

// WriteResultMsg is returned after a mutation completes.
type WriteResultMsg struct {
	Operation    WriteOperation
	CollectionID string
	// Collection is the server's copy after create or update.
	Collection model.Collection
	Err        error
}

// Success reports whether the mutation went through.
func (m WriteResultMsg) Success() bool { return m.Err == nil }

// CollectionWriter runs collection mutations as commands.
type CollectionWriter struct {
	svc Service
	ctx context.Context
}

// NewCollectionWriter creates a writer over svc.
func NewCollectionWriter(ctx context.Context, svc Service) *CollectionWriter {
	return &CollectionWriter{svc: svc, ctx: ctx}
}

// Create creates a collection.
func (w *CollectionWriter) Create(in model.CollectionCreate) tea.Cmd {
	if err := in.Validate(); err != nil {
		return failedCmd(WriteCreate, "", err)
	}
	svc, ctx := w.svc, w.ctx
	return func() tea.Msg {
		c, err := svc.Create(ctx, in)
		if err != nil {
			return WriteResultMsg{Operation: WriteCreate, Err: fmt.Errorf("creating collection %q: %w", in.Name, err)}
		}
		return WriteResultMsg{Operation: WriteCreate, CollectionID: c.ID, Collection: c}
	}
}

// Update applies a partial update to id.
func (w *CollectionWriter) Update(id string, in model.CollectionUpdate) tea.Cmd {
	return w.update(WriteUpdate, id, in)
}

// SetType is a convenience wrapper for updating just the collection type.
func (w *CollectionWriter) SetType(id string, t model.CollectionType) tea.Cmd {
	return w.update(WriteSetType, id, model.CollectionUpdate{CollectionType: &t})
}

func (w *CollectionWriter) update(op WriteOperation, id string, in model.CollectionUpdate) tea.Cmd {
	if err := in.Validate(); err != nil {
		return failedCmd(op, id, err)
	}
	svc, ctx := w.svc, w.ctx
	return func() tea.Msg {
		c, err := svc.Update(ctx, id, in)
		if err != nil {
			return WriteResultMsg{Operation: op, CollectionID: id, Err: fmt.Errorf("updating collection %s: %w", id, err)}
		}
		return WriteResultMsg{Operation: op, CollectionID: id, Collection: c}
	}
}

// Delete removes id.
func (w *CollectionWriter) Delete(id string) tea.Cmd {
	svc, ctx := w.svc, w.ctx
	return func() tea.Msg {
		if err := svc.Delete(ctx, id); err != nil {
			return WriteResultMsg{Operation: WriteDelete, CollectionID: id, Err: fmt.Errorf("deleting collection %s: %w", id, err)}
		}
		return WriteResultMsg{Operation: WriteDelete, CollectionID: id}
	}
}

// failedCmd reports a mutation rejected before reaching the server.
func failedCmd(op WriteOperation, id string, err error) tea.Cmd {
	return func() tea.Msg {
		return WriteResultMsg{Operation: op, CollectionID: id, Err: err}
	}
}
