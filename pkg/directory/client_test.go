package directory

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/api/v1", WithToken("secret"), WithTimeout(2*time.Second))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, raw := range []string{"ftp://example.com", "not a url", "://missing"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) expected error", raw)
		}
	}
}

func TestList_QueryAndAuth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/collections/" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("parent_collection_id"); got != "c2" {
			t.Errorf("parent_collection_id = %q, want c2", got)
		}
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		if r.URL.Query().Has("project_id") {
			t.Error("project_id should not be sent")
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		io.WriteString(w, `[{"id":"c2a","name":"A","parent_collection_id":"c2"},{"id":"c2b","name":"B","parent_collection_id":"c2"}]`)
	})

	got, err := c.List(context.Background(), ListQuery{ParentCollectionID: "c2", Limit: 50})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 || got[0].ID != "c2a" || got[1].ID != "c2b" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestList_EmptyIsNotNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})
	got, err := c.ListChildren(context.Background(), "leaf")
	if err != nil {
		t.Fatalf("ListChildren failed: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestListRoots_UsesProject(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("project_id"); got != "p1" {
			t.Errorf("project_id = %q, want p1", got)
		}
		io.WriteString(w, `null`)
	})
	got, err := c.ListRoots(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ListRoots failed: %v", err)
	}
	if got == nil {
		t.Error("expected non-nil slice for null body")
	}
}

func TestRequestError_StatusAndDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"detail":"Collection not found"}`)
	})

	_, err := c.Get(context.Background(), "missing")
	if err == nil {
		t.Fatal("expected error")
	}
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %T", err)
	}
	if re.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", re.Status)
	}
	if !strings.Contains(err.Error(), "request failed") || !strings.Contains(err.Error(), "Collection not found") {
		t.Errorf("unexpected message: %v", err)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
}

func TestRequestError_StatusWithoutDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `oops`)
	})
	_, err := c.List(context.Background(), ListQuery{ProjectID: "p"})
	if err == nil || !strings.Contains(err.Error(), "500 Internal Server Error") {
		t.Errorf("unexpected error: %v", err)
	}
	if IsNotFound(err) {
		t.Error("500 is not a not-found")
	}
}

func TestRequestError_Transport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(url)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = c.ListChildren(context.Background(), "c1")
	var re *RequestError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RequestError, got %T (%v)", err, err)
	}
	if re.Status != 0 {
		t.Errorf("transport failure Status = %d, want 0", re.Status)
	}
	if re.Unwrap() == nil {
		t.Error("transport failure should wrap its cause")
	}
}

func TestCreate_SendsBodyAndValidates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"name":"Box 7"`) || !strings.Contains(string(body), `"parent_collection_id":"c2a"`) {
			t.Errorf("unexpected body: %s", body)
		}
		if strings.Contains(string(body), "project_id") {
			t.Errorf("project_id must be omitted: %s", body)
		}
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":"new1","name":"Box 7","parent_collection_id":"c2a"}`)
	})

	got, err := c.Create(context.Background(), model.CollectionCreate{Name: " Box 7 ", ParentCollectionID: model.Ptr("c2a")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if got.ID != "new1" {
		t.Errorf("ID = %q, want new1", got.ID)
	}

	if _, err := c.Create(context.Background(), model.CollectionCreate{Name: ""}); err == nil {
		t.Error("expected validation error before any request")
	}
}

func TestUpdateAndDelete(t *testing.T) {
	var methods []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			io.WriteString(w, `{"id":"c1","name":"Renamed","project_id":"p1"}`)
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		}
	})

	name := "Renamed"
	got, err := c.Update(context.Background(), "c1", model.CollectionUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("Name = %q", got.Name)
	}
	if err := c.Delete(context.Background(), "c1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	want := []string{"PUT /api/v1/collections/c1", "DELETE /api/v1/collections/c1"}
	if len(methods) != len(want) {
		t.Fatalf("calls = %v, want %v", methods, want)
	}
	for i := range want {
		if methods[i] != want[i] {
			t.Errorf("call[%d] = %s, want %s", i, methods[i], want[i])
		}
	}
}

func TestListRecordsAndProjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/records/":
			if r.URL.Query().Get("project_id") != "p1" {
				t.Errorf("records query = %s", r.URL.RawQuery)
			}
			io.WriteString(w, `[{"id":"r1","title":"Deed","project_id":"p1"},{"id":"r2","title":"Map"}]`)
		case "/api/v1/projects/":
			io.WriteString(w, `[{"id":"p1","name":"Parish archive"}]`)
		case "/api/v1/projects/p1":
			io.WriteString(w, `{"id":"p1","name":"Parish archive"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ctx := context.Background()
	recs, err := c.ListRecords(ctx, RecordQuery{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(recs) != 2 || recs[0].IsOrphaned() || !recs[1].IsOrphaned() {
		t.Errorf("unexpected records: %+v", recs)
	}
	projects, err := c.ListProjects(ctx)
	if err != nil || len(projects) != 1 {
		t.Fatalf("ListProjects = %v, %v", projects, err)
	}
	p, err := c.GetProject(ctx, "p1")
	if err != nil || p.Name != "Parish archive" {
		t.Errorf("GetProject = %+v, %v", p, err)
	}
}
