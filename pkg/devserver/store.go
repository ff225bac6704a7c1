// Package devserver is a small development backend for the collection
// directory API, backed by SQLite. It serves the same routes and payloads
// as the production service so the client and the TUI can run locally.
package devserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/vanderheijden86/digitarc/pkg/model"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write would break the forest.
	ErrConflict = errors.New("conflict")
)

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_by  TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS collections (
	seq                  INTEGER PRIMARY KEY AUTOINCREMENT,
	id                   TEXT NOT NULL UNIQUE,
	name                 TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	collection_type      TEXT NOT NULL DEFAULT '',
	project_id           TEXT REFERENCES projects(id),
	parent_collection_id TEXT REFERENCES collections(id),
	archival_metadata    TEXT,
	created_at           TEXT NOT NULL,
	updated_at           TEXT NOT NULL,
	CHECK ((project_id IS NULL) <> (parent_collection_id IS NULL))
);
CREATE INDEX IF NOT EXISTS idx_collections_project ON collections(project_id);
CREATE INDEX IF NOT EXISTS idx_collections_parent ON collections(parent_collection_id);
CREATE TABLE IF NOT EXISTS records (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	title             TEXT NOT NULL,
	typology          TEXT NOT NULL DEFAULT '',
	author            TEXT NOT NULL DEFAULT '',
	material          TEXT NOT NULL DEFAULT '',
	date              TEXT NOT NULL DEFAULT '',
	description       TEXT NOT NULL DEFAULT '',
	custom_attributes TEXT,
	project_id        TEXT REFERENCES projects(id),
	collection_id     TEXT REFERENCES collections(id) ON DELETE SET NULL,
	created_at        TEXT NOT NULL,
	updated_at        TEXT NOT NULL
);
`

// Store persists projects, collections and records.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (and migrates) the database at path. ":memory:" gives a
// throwaway database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps an in-memory database shared and serializes writes.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func nullString(p *string) sql.NullString {
	if p == nil || *p == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func rawJSON(ns sql.NullString) []byte {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return []byte(ns.String)
}

func jsonText(raw []byte) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

// Projects

// CreateProject inserts a project with a fresh id.
func (s *Store) CreateProject(ctx context.Context, name, description, createdBy string) (model.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Project{}, fmt.Errorf("project name cannot be empty")
	}
	p := model.Project{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		CreatedBy:   createdBy,
		CreatedAt:   s.now(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, description, created_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.CreatedBy, formatTime(p.CreatedAt))
	if err != nil {
		return model.Project{}, fmt.Errorf("inserting project: %w", err)
	}
	return p, nil
}

// ListProjects returns all projects in creation order.
func (s *Store) ListProjects(ctx context.Context, skip, limit int) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_by, created_at FROM projects ORDER BY seq LIMIT ? OFFSET ?`,
		sqlLimit(limit), skip)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	out := []model.Project{}
	for rows.Next() {
		var p model.Project
		var created string
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &created); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		p.CreatedAt = parseTime(created)
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProject returns one project.
func (s *Store) GetProject(ctx context.Context, id string) (model.Project, error) {
	var p model.Project
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_by, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Description, &p.CreatedBy, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Project{}, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Project{}, fmt.Errorf("getting project: %w", err)
	}
	p.CreatedAt = parseTime(created)
	return p, nil
}

// Collections

const collectionColumns = `id, name, description, collection_type, project_id,
	parent_collection_id, archival_metadata, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(row scanner) (model.Collection, error) {
	var c model.Collection
	var ctype, created, updated string
	var project, parent, meta sql.NullString
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &ctype, &project, &parent, &meta, &created, &updated); err != nil {
		return model.Collection{}, err
	}
	c.CollectionType = model.CollectionType(ctype)
	c.ProjectID = stringPtr(project)
	c.ParentCollectionID = stringPtr(parent)
	c.ArchivalMetadata = rawJSON(meta)
	c.CreatedAt = parseTime(created)
	c.UpdatedAt = parseTime(updated)
	return c, nil
}

// CollectionFilter selects a listing. With ProjectID only root collections
// of that project are returned; with ParentID only its direct children.
type CollectionFilter struct {
	ProjectID string
	ParentID  string
	Skip      int
	Limit     int
}

// ListCollections returns collections in insertion order.
func (s *Store) ListCollections(ctx context.Context, f CollectionFilter) ([]model.Collection, error) {
	var where []string
	var args []any
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.ParentID != "" {
		where = append(where, "parent_collection_id = ?")
		args = append(args, f.ParentID)
	}
	q := `SELECT ` + collectionColumns + ` FROM collections`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(f.Limit), f.Skip)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	out := []model.Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetCollection returns one collection.
func (s *Store) GetCollection(ctx context.Context, id string) (model.Collection, error) {
	c, err := scanCollection(s.db.QueryRowContext(ctx,
		`SELECT `+collectionColumns+` FROM collections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Collection{}, fmt.Errorf("collection %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.Collection{}, fmt.Errorf("getting collection: %w", err)
	}
	return c, nil
}

// CreateCollection inserts a collection under a project or a parent.
func (s *Store) CreateCollection(ctx context.Context, in model.CollectionCreate) (model.Collection, error) {
	if err := in.Validate(); err != nil {
		return model.Collection{}, err
	}
	if in.ProjectID != nil && *in.ProjectID != "" {
		if _, err := s.GetProject(ctx, *in.ProjectID); err != nil {
			return model.Collection{}, err
		}
	}
	if in.ParentCollectionID != nil && *in.ParentCollectionID != "" {
		if _, err := s.GetCollection(ctx, *in.ParentCollectionID); err != nil {
			return model.Collection{}, err
		}
	}

	now := s.now()
	c := model.Collection{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		Description:        in.Description,
		CollectionType:     in.CollectionType,
		ProjectID:          stringPtr(nullString(in.ProjectID)),
		ParentCollectionID: stringPtr(nullString(in.ParentCollectionID)),
		ArchivalMetadata:   in.ArchivalMetadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (`+collectionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Description, string(c.CollectionType),
		nullString(c.ProjectID), nullString(c.ParentCollectionID), jsonText(c.ArchivalMetadata),
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return model.Collection{}, fmt.Errorf("inserting collection: %w", err)
	}
	return c, nil
}

// UpdateCollection applies a partial update. Moving a collection under
// itself or one of its descendants is refused with ErrConflict. A root
// collection that gets a parent loses its project link.
func (s *Store) UpdateCollection(ctx context.Context, id string, in model.CollectionUpdate) (model.Collection, error) {
	if err := in.Validate(); err != nil {
		return model.Collection{}, err
	}
	c, err := s.GetCollection(ctx, id)
	if err != nil {
		return model.Collection{}, err
	}

	if in.Name != nil {
		c.Name = *in.Name
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.CollectionType != nil {
		c.CollectionType = *in.CollectionType
	}
	if in.ArchivalMetadata != nil {
		c.ArchivalMetadata = in.ArchivalMetadata
	}
	if in.ParentCollectionID != nil && *in.ParentCollectionID != "" && *in.ParentCollectionID != c.ParentID() {
		newParent := *in.ParentCollectionID
		if err := s.checkMove(ctx, id, newParent); err != nil {
			return model.Collection{}, err
		}
		c.ParentCollectionID = model.Ptr(newParent)
		c.ProjectID = nil
	}
	c.UpdatedAt = s.now()

	_, err = s.db.ExecContext(ctx,
		`UPDATE collections SET name = ?, description = ?, collection_type = ?, project_id = ?,
			parent_collection_id = ?, archival_metadata = ?, updated_at = ? WHERE id = ?`,
		c.Name, c.Description, string(c.CollectionType), nullString(c.ProjectID),
		nullString(c.ParentCollectionID), jsonText(c.ArchivalMetadata), formatTime(c.UpdatedAt), id)
	if err != nil {
		return model.Collection{}, fmt.Errorf("updating collection: %w", err)
	}
	return c, nil
}

// checkMove walks up from newParent and fails if it reaches id.
func (s *Store) checkMove(ctx context.Context, id, newParent string) error {
	cur := newParent
	for steps := 0; cur != ""; steps++ {
		if cur == id {
			return fmt.Errorf("moving %s under %s would create a cycle: %w", id, newParent, ErrConflict)
		}
		if steps > 1000 {
			return fmt.Errorf("ancestry of %s is too deep: %w", newParent, ErrConflict)
		}
		p, err := s.GetCollection(ctx, cur)
		if err != nil {
			return err
		}
		cur = p.ParentID()
	}
	return nil
}

// DeleteCollection removes a childless collection. Its records become
// orphans.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	if _, err := s.GetCollection(ctx, id); err != nil {
		return err
	}
	var children int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM collections WHERE parent_collection_id = ?`, id).Scan(&children); err != nil {
		return fmt.Errorf("counting children: %w", err)
	}
	if children > 0 {
		return fmt.Errorf("collection %s has %d subcollections: %w", id, children, ErrConflict)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	return nil
}

// Records

const recordColumns = `id, title, typology, author, material, date, description,
	custom_attributes, project_id, collection_id, created_at, updated_at`

// CreateRecord inserts a record. Images are not stored by the dev server.
func (s *Store) CreateRecord(ctx context.Context, r model.Record) (model.Record, error) {
	now := s.now()
	r.ID = uuid.NewString()
	r.CreatedAt, r.UpdatedAt = now, now
	r.Images = nil
	if err := r.Validate(); err != nil {
		return model.Record{}, err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (`+recordColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Typology, r.Author, r.Material, r.Date, r.Description,
		jsonText(r.CustomAttributes), nullString(r.ProjectID), nullString(r.CollectionID),
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt))
	if err != nil {
		return model.Record{}, fmt.Errorf("inserting record: %w", err)
	}
	return r, nil
}

// RecordFilter selects a record listing.
type RecordFilter struct {
	ProjectID    string
	CollectionID string
	Skip         int
	Limit        int
}

// ListRecords returns records in insertion order.
func (s *Store) ListRecords(ctx context.Context, f RecordFilter) ([]model.Record, error) {
	var where []string
	var args []any
	if f.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, f.ProjectID)
	}
	if f.CollectionID != "" {
		where = append(where, "collection_id = ?")
		args = append(args, f.CollectionID)
	}
	q := `SELECT ` + recordColumns + ` FROM records`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq LIMIT ? OFFSET ?"
	args = append(args, sqlLimit(f.Limit), f.Skip)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	out := []model.Record{}
	for rows.Next() {
		var r model.Record
		var attrs, project, coll sql.NullString
		var created, updated string
		if err := rows.Scan(&r.ID, &r.Title, &r.Typology, &r.Author, &r.Material, &r.Date, &r.Description,
			&attrs, &project, &coll, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		r.CustomAttributes = rawJSON(attrs)
		r.ProjectID = stringPtr(project)
		r.CollectionID = stringPtr(coll)
		r.CreatedAt = parseTime(created)
		r.UpdatedAt = parseTime(updated)
		out = append(out, r)
	}
	return out, rows.Err()
}

// sqlLimit maps "no limit" (0) to SQLite's -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
