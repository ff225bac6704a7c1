package ui

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/vanderheijden86/digitarc/pkg/model"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

// rootParent is the parent selector value for "directly under the project".
const rootParent = ""

// FormMode tells the form whether it creates or edits.
type FormMode int

const (
	FormCreate FormMode = iota
	FormEdit
)

// formValues is bound to the huh fields; it lives behind a pointer so the
// bindings survive copies of the model.
type formValues struct {
	Name        string
	Description string
	Type        model.CollectionType
	ParentID    string
}

// CollectionFormModel is the create/edit collection form.
type CollectionFormModel struct {
	form      *huh.Form
	mode      FormMode
	editing   model.Collection
	projectID string
	values    *formValues
	title     string
	err       error
	// pending is set once the write is dispatched; the form takes no
	// input until the result arrives.
	pending bool
}

// NewCreateForm opens a creation form. parentID preselects the parent; ""
// means a root collection of projectID. With no projectID a parent is
// required.
func NewCreateForm(projectID, parentID string, parents []tree.ParentOption, width int) CollectionFormModel {
	v := &formValues{ParentID: parentID}
	m := CollectionFormModel{mode: FormCreate, projectID: projectID, values: v, title: "New collection"}
	m.form = m.build(parents, width)
	return m
}

// NewEditForm opens an edit form for c. parents should already exclude c
// and its descendants. Only a root collection offers the project root as a
// parent, since a nested one cannot be moved back there.
func NewEditForm(c model.Collection, parents []tree.ParentOption, width int) CollectionFormModel {
	v := &formValues{
		Name:        c.Name,
		Description: c.Description,
		Type:        c.CollectionType,
		ParentID:    c.ParentID(),
	}
	m := CollectionFormModel{mode: FormEdit, editing: c, projectID: c.Project(), values: v, title: "Edit collection"}
	m.form = m.build(parents, width)
	return m
}

func (m *CollectionFormModel) build(parents []tree.ParentOption, width int) *huh.Form {
	v := m.values

	typeOpts := make([]huh.Option[model.CollectionType], 0, len(model.AllCollectionTypes()))
	for _, ct := range model.AllCollectionTypes() {
		typeOpts = append(typeOpts, huh.NewOption(ct.Label(), ct))
	}

	var parentOpts []huh.Option[string]
	if m.projectID != "" {
		parentOpts = append(parentOpts, huh.NewOption("(project root)", rootParent))
	}
	for _, p := range parents {
		parentOpts = append(parentOpts, huh.NewOption(p.Label, p.ID))
	}
	if len(parentOpts) == 0 {
		parentOpts = append(parentOpts, huh.NewOption("(no parent available)", rootParent))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(m.title).
				Placeholder("Name").
				CharLimit(200).
				Value(&v.Name).
				Validate(validateName),
			huh.NewSelect[model.CollectionType]().
				Title("Type").
				Options(typeOpts...).
				Value(&v.Type),
			huh.NewSelect[string]().
				Title("Parent").
				Options(parentOpts...).
				Value(&v.ParentID),
			huh.NewText().
				Title("Description").
				Lines(4).
				Value(&v.Description),
		),
	).WithShowHelp(true)
	if width > 0 {
		form = form.WithWidth(width)
	}
	return form
}

func validateName(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("name is required")
	}
	return nil
}

// Init focuses the first field.
func (m CollectionFormModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards msg to the form.
func (m CollectionFormModel) Update(msg tea.Msg) (CollectionFormModel, tea.Cmd) {
	f, cmd := m.form.Update(msg)
	if form, ok := f.(*huh.Form); ok {
		m.form = form
	}
	return m, cmd
}

// Completed reports whether the user submitted the form.
func (m CollectionFormModel) Completed() bool {
	return m.form.State == huh.StateCompleted
}

// Aborted reports whether the user cancelled the form.
func (m CollectionFormModel) Aborted() bool {
	return m.form.State == huh.StateAborted
}

// Pending reports whether a submitted write is awaiting its result.
func (m CollectionFormModel) Pending() bool {
	return m.pending
}

// Mode returns whether the form creates or edits.
func (m CollectionFormModel) Mode() FormMode {
	return m.mode
}

// Retry reopens the form with the submitted values and err shown inline.
func (m *CollectionFormModel) Retry(parents []tree.ParentOption, width int, err error) tea.Cmd {
	m.err = err
	m.pending = false
	m.form = m.build(parents, width)
	return m.form.Init()
}

// Err returns the last inline error.
func (m CollectionFormModel) Err() error {
	return m.err
}

// Editing returns the collection being edited.
func (m CollectionFormModel) Editing() model.Collection {
	return m.editing
}

// CreatePayload builds the create request from the form values.
func (m CollectionFormModel) CreatePayload() model.CollectionCreate {
	v := m.values
	in := model.CollectionCreate{
		Name:           strings.TrimSpace(v.Name),
		Description:    strings.TrimSpace(v.Description),
		CollectionType: v.Type,
	}
	if v.ParentID == rootParent {
		if m.projectID != "" {
			in.ProjectID = model.Ptr(m.projectID)
		}
	} else {
		in.ParentCollectionID = model.Ptr(v.ParentID)
	}
	return in
}

// UpdatePayload builds a partial update with only the changed fields.
// The second result is false when nothing changed.
func (m CollectionFormModel) UpdatePayload() (model.CollectionUpdate, bool) {
	v := m.values
	c := m.editing
	var in model.CollectionUpdate
	changed := false

	if name := strings.TrimSpace(v.Name); name != c.Name {
		in.Name = &name
		changed = true
	}
	if desc := strings.TrimSpace(v.Description); desc != c.Description {
		in.Description = &desc
		changed = true
	}
	if v.Type != c.CollectionType {
		t := v.Type
		in.CollectionType = &t
		changed = true
	}
	if v.ParentID != c.ParentID() && v.ParentID != rootParent {
		in.ParentCollectionID = model.Ptr(v.ParentID)
		changed = true
	}
	return in, changed
}

// View renders the form with any inline error below it.
func (m CollectionFormModel) View() string {
	view := m.form.View()
	if m.pending {
		return view + "\nSaving…"
	}
	if m.err != nil {
		view += "\n" + m.err.Error()
	}
	return view
}
