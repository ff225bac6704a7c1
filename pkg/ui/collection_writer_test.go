package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

func TestCollectionWriterCreate(t *testing.T) {
	svc := sampleService()
	w := NewCollectionWriter(context.Background(), svc)

	msg := w.Create(model.CollectionCreate{Name: "  Box 4  ", ParentCollectionID: model.Ptr("C2")})().(WriteResultMsg)
	if !msg.Success() {
		t.Fatalf("Create failed: %v", msg.Err)
	}
	if msg.Operation != WriteCreate || msg.CollectionID != "new-1" {
		t.Errorf("msg = %+v, want create of new-1", msg)
	}
	if msg.Collection.Name != "Box 4" {
		t.Errorf("name = %q, want trimmed %q", msg.Collection.Name, "Box 4")
	}
	if msg.Collection.ParentID() != "C2" {
		t.Errorf("parent = %q, want C2", msg.Collection.ParentID())
	}
}

func TestCollectionWriterCreateRejectsInvalidInput(t *testing.T) {
	svc := sampleService()
	w := NewCollectionWriter(context.Background(), svc)

	tests := []struct {
		name string
		in   model.CollectionCreate
	}{
		{"blank name", model.CollectionCreate{Name: "   ", ProjectID: model.Ptr(testProject)}},
		{"no placement", model.CollectionCreate{Name: "Loose"}},
		{"both placements", model.CollectionCreate{Name: "Both", ProjectID: model.Ptr(testProject), ParentCollectionID: model.Ptr("C1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := w.Create(tt.in)().(WriteResultMsg)
			if msg.Success() {
				t.Fatal("expected validation error")
			}
		})
	}
	if svc.nextID != 0 {
		t.Errorf("server saw %d creates, want 0", svc.nextID)
	}
}

func TestCollectionWriterWrapsServerErrors(t *testing.T) {
	svc := sampleService()
	boom := errors.New("boom")
	svc.failDelete = boom
	svc.failCreate = boom
	w := NewCollectionWriter(context.Background(), svc)

	del := w.Delete("C1")().(WriteResultMsg)
	if !errors.Is(del.Err, boom) {
		t.Fatalf("Delete err = %v, want wrapping boom", del.Err)
	}
	if del.Operation != WriteDelete || del.CollectionID != "C1" {
		t.Errorf("msg = %+v", del)
	}
	if !strings.Contains(del.Err.Error(), "deleting collection C1") {
		t.Errorf("Delete err = %q, want context", del.Err)
	}

	cr := w.Create(model.CollectionCreate{Name: "X", ProjectID: model.Ptr(testProject)})().(WriteResultMsg)
	if !errors.Is(cr.Err, boom) || !strings.Contains(cr.Err.Error(), `"X"`) {
		t.Errorf("Create err = %v", cr.Err)
	}
}

func TestCollectionWriterSetType(t *testing.T) {
	svc := sampleService()
	w := NewCollectionWriter(context.Background(), svc)

	msg := w.SetType("C2b", model.TypeBox)().(WriteResultMsg)
	if !msg.Success() {
		t.Fatalf("SetType failed: %v", msg.Err)
	}
	if msg.Operation != WriteSetType {
		t.Errorf("Operation = %v, want set type", msg.Operation)
	}
	got, _ := svc.Get(context.Background(), "C2b")
	if got.CollectionType != model.TypeBox {
		t.Errorf("type = %v, want box", got.CollectionType)
	}
	if got.Name != "Collection C2b" {
		t.Errorf("name changed to %q", got.Name)
	}
}

func TestCollectionWriterUpdateUnknown(t *testing.T) {
	w := NewCollectionWriter(context.Background(), sampleService())
	msg := w.Update("nope", model.CollectionUpdate{Name: model.Ptr("Renamed")})().(WriteResultMsg)
	if !errors.Is(msg.Err, errNotFound) {
		t.Errorf("err = %v, want not found", msg.Err)
	}
}

func TestWriteOperationString(t *testing.T) {
	want := map[WriteOperation]string{
		WriteCreate:        "create",
		WriteUpdate:        "update",
		WriteDelete:        "delete",
		WriteSetType:       "set type",
		WriteOperation(99): "unknown",
	}
	for op, s := range want {
		if op.String() != s {
			t.Errorf("%d.String() = %q, want %q", int(op), op.String(), s)
		}
	}
}
