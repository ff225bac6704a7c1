package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Collection is a node in a project's collection forest. A root collection
// carries ProjectID; a nested one carries ParentCollectionID.
type Collection struct {
	ID                 string          `json:"id"`
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	CollectionType     CollectionType  `json:"collection_type,omitempty"`
	ProjectID          *string         `json:"project_id,omitempty"`
	ParentCollectionID *string         `json:"parent_collection_id,omitempty"`
	ArchivalMetadata   json.RawMessage `json:"archival_metadata,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsRoot reports whether the collection hangs directly off a project.
func (c Collection) IsRoot() bool {
	return c.ParentID() == ""
}

// ParentID returns the parent collection id, or "" for a root collection.
func (c Collection) ParentID() string {
	if c.ParentCollectionID == nil {
		return ""
	}
	return *c.ParentCollectionID
}

// Project returns the directly attached project id, or "".
func (c Collection) Project() string {
	if c.ProjectID == nil {
		return ""
	}
	return *c.ProjectID
}

// Clone creates a deep copy of the collection
func (c Collection) Clone() Collection {
	clone := c
	if c.ProjectID != nil {
		v := *c.ProjectID
		clone.ProjectID = &v
	}
	if c.ParentCollectionID != nil {
		v := *c.ParentCollectionID
		clone.ParentCollectionID = &v
	}
	if c.ArchivalMetadata != nil {
		clone.ArchivalMetadata = make(json.RawMessage, len(c.ArchivalMetadata))
		copy(clone.ArchivalMetadata, c.ArchivalMetadata)
	}
	return clone
}

// Validate checks if the collection data is logically valid
func (c *Collection) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("collection ID cannot be empty")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if !c.CollectionType.IsValid() {
		return fmt.Errorf("invalid collection type: %s", c.CollectionType)
	}
	hasProject := c.Project() != ""
	hasParent := c.ParentID() != ""
	if hasProject && hasParent {
		return fmt.Errorf("collection %s cannot have both project_id and parent_collection_id", c.ID)
	}
	if !hasProject && !hasParent {
		return fmt.Errorf("collection %s needs a project_id or a parent_collection_id", c.ID)
	}
	if hasParent && c.ParentID() == c.ID {
		return fmt.Errorf("collection %s cannot be its own parent", c.ID)
	}
	if !c.UpdatedAt.IsZero() && !c.CreatedAt.IsZero() && c.UpdatedAt.Before(c.CreatedAt) {
		return fmt.Errorf("updated_at (%v) cannot be before created_at (%v)", c.UpdatedAt, c.CreatedAt)
	}
	return nil
}

// CollectionType is the archival level of a collection
type CollectionType string

const (
	TypeUnset  CollectionType = ""
	TypeFonds  CollectionType = "fonds"
	TypeSeries CollectionType = "series"
	TypeBox    CollectionType = "box"
	TypeFolder CollectionType = "folder"
	TypeVolume CollectionType = "volume"
)

// AllCollectionTypes returns the selectable vocabulary, unset first.
func AllCollectionTypes() []CollectionType {
	return []CollectionType{TypeUnset, TypeFonds, TypeSeries, TypeBox, TypeFolder, TypeVolume}
}

// IsValid returns true if the type is part of the vocabulary (unset included)
func (t CollectionType) IsValid() bool {
	switch t {
	case TypeUnset, TypeFonds, TypeSeries, TypeBox, TypeFolder, TypeVolume:
		return true
	}
	return false
}

// Label returns a display name, e.g. "Fonds" or "(none)".
func (t CollectionType) Label() string {
	if t == TypeUnset {
		return "(none)"
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// CollectionCreate is the payload for creating a collection.
// Exactly one of ProjectID and ParentCollectionID must be set.
type CollectionCreate struct {
	Name               string          `json:"name"`
	Description        string          `json:"description,omitempty"`
	CollectionType     CollectionType  `json:"collection_type,omitempty"`
	ProjectID          *string         `json:"project_id,omitempty"`
	ParentCollectionID *string         `json:"parent_collection_id,omitempty"`
	ArchivalMetadata   json.RawMessage `json:"archival_metadata,omitempty"`
}

// Validate trims the name and checks placement.
func (c *CollectionCreate) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if !c.CollectionType.IsValid() {
		return fmt.Errorf("invalid collection type: %s", c.CollectionType)
	}
	hasProject := c.ProjectID != nil && *c.ProjectID != ""
	hasParent := c.ParentCollectionID != nil && *c.ParentCollectionID != ""
	if hasProject == hasParent {
		return fmt.Errorf("exactly one of project_id and parent_collection_id must be set")
	}
	return nil
}

// CollectionUpdate is a partial update; nil fields are left unchanged.
type CollectionUpdate struct {
	Name               *string         `json:"name,omitempty"`
	Description        *string         `json:"description,omitempty"`
	CollectionType     *CollectionType `json:"collection_type,omitempty"`
	ParentCollectionID *string         `json:"parent_collection_id,omitempty"`
	ArchivalMetadata   json.RawMessage `json:"archival_metadata,omitempty"`
}

// Validate checks the fields that are present.
func (u *CollectionUpdate) Validate() error {
	if u.Name != nil {
		trimmed := strings.TrimSpace(*u.Name)
		if trimmed == "" {
			return fmt.Errorf("collection name cannot be empty")
		}
		u.Name = &trimmed
	}
	if u.CollectionType != nil && !u.CollectionType.IsValid() {
		return fmt.Errorf("invalid collection type: %s", *u.CollectionType)
	}
	return nil
}

// Project owns root collections and records
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record is a cataloged digitized object
type Record struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Typology         string          `json:"typology,omitempty"`
	Author           string          `json:"author,omitempty"`
	Material         string          `json:"material,omitempty"`
	Date             string          `json:"date,omitempty"`
	Description      string          `json:"description,omitempty"`
	CustomAttributes json.RawMessage `json:"custom_attributes,omitempty"`
	ProjectID        *string         `json:"project_id,omitempty"`
	CollectionID     *string         `json:"collection_id,omitempty"`
	Images           []RecordImage   `json:"images,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsOrphaned reports whether the record belongs to neither a project nor a collection.
func (r Record) IsOrphaned() bool {
	return (r.ProjectID == nil || *r.ProjectID == "") &&
		(r.CollectionID == nil || *r.CollectionID == "")
}

// Validate checks if the record data is logically valid
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record ID cannot be empty")
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("record title cannot be empty")
	}
	for i := range r.Images {
		if err := r.Images[i].Validate(); err != nil {
			return fmt.Errorf("image[%d]: %w", i, err)
		}
		if r.Images[i].RecordID != "" && r.Images[i].RecordID != r.ID {
			return fmt.Errorf("image[%d]: belongs to record %s, not %s", i, r.Images[i].RecordID, r.ID)
		}
	}
	return nil
}

// ImageRole is the position of an image within a capture
type ImageRole string

const (
	RoleLeft     ImageRole = "left"
	RoleRight    ImageRole = "right"
	RoleSingle   ImageRole = "single"
	RoleOverview ImageRole = "overview"
)

// IsValid returns true if the role is a recognized value (empty is allowed)
func (r ImageRole) IsValid() bool {
	switch r {
	case "", RoleLeft, RoleRight, RoleSingle, RoleOverview:
		return true
	}
	return false
}

// RecordImage is one captured image file of a record
type RecordImage struct {
	ID             string          `json:"id"`
	RecordID       string          `json:"record_id"`
	Filename       string          `json:"filename"`
	StoragePath    string          `json:"storage_path"`
	ThumbnailPath  string          `json:"thumbnail_path,omitempty"`
	FileSize       int64           `json:"file_size"`
	Format         string          `json:"format,omitempty"`
	Resolution     string          `json:"resolution,omitempty"`
	CaptureID      string          `json:"capture_id,omitempty"`
	PairID         string          `json:"pair_id,omitempty"`
	Sequence       int             `json:"sequence,omitempty"`
	Role           ImageRole       `json:"role,omitempty"`
	CameraSettings json.RawMessage `json:"camera_settings,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Validate checks if the image data is logically valid
func (i *RecordImage) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("image ID cannot be empty")
	}
	if i.Filename == "" {
		return fmt.Errorf("image filename cannot be empty")
	}
	if i.FileSize < 0 {
		return fmt.Errorf("file_size (%d) cannot be negative", i.FileSize)
	}
	if !i.Role.IsValid() {
		return fmt.Errorf("invalid image role: %s", i.Role)
	}
	return nil
}

// Ptr returns a pointer to s; convenient for optional id fields.
func Ptr(s string) *string {
	return &s
}
