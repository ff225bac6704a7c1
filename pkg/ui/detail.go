package ui

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/digitarc/pkg/directory"
	"github.com/vanderheijden86/digitarc/pkg/model"
	"github.com/vanderheijden86/digitarc/pkg/tree"
)

// DetailLoadedMsg carries the lazily loaded parts of a collection's detail.
type DetailLoadedMsg struct {
	CollectionID string
	Ancestry     tree.Ancestry
	Records      int
	RecordsErr   error
}

// OrphansLoadedMsg carries the number of records assigned to neither a
// project nor a collection.
type OrphansLoadedMsg struct {
	Count int
	Err   error
}

// ProjectsLoadedMsg carries the server's project list.
type ProjectsLoadedMsg struct {
	Projects []model.Project
	Err      error
}

// detailState is what the detail pane shows for one collection.
type detailState struct {
	collection model.Collection
	loaded     bool
	ancestry   tree.Ancestry
	records    int
	recordsErr error
}

func loadDetailCmd(ctx context.Context, svc Service, c model.Collection, maxDepth int) tea.Cmd {
	return func() tea.Msg {
		msg := DetailLoadedMsg{CollectionID: c.ID}
		msg.Ancestry = tree.ResolveAncestors(ctx, svc, c, maxDepth)
		recs, err := svc.ListRecords(ctx, directory.RecordQuery{CollectionID: c.ID})
		if err != nil {
			msg.RecordsErr = fmt.Errorf("listing records of %s: %w", c.ID, err)
		} else {
			msg.Records = len(recs)
		}
		return msg
	}
}

func loadOrphansCmd(ctx context.Context, svc Service) tea.Cmd {
	return func() tea.Msg {
		recs, err := svc.ListRecords(ctx, directory.RecordQuery{})
		if err != nil {
			return OrphansLoadedMsg{Err: fmt.Errorf("listing records: %w", err)}
		}
		n := 0
		for _, r := range recs {
			if r.IsOrphaned() {
				n++
			}
		}
		return OrphansLoadedMsg{Count: n}
	}
}

func loadProjectsCmd(ctx context.Context, svc Service) tea.Cmd {
	return func() tea.Msg {
		ps, err := svc.ListProjects(ctx)
		if err != nil {
			return ProjectsLoadedMsg{Err: fmt.Errorf("listing projects: %w", err)}
		}
		return ProjectsLoadedMsg{Projects: ps}
	}
}

// detailMarkdown renders a collection's detail as markdown.
func detailMarkdown(d *detailState) string {
	c := d.collection
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", c.Name)

	if d.loaded {
		crumbs := d.ancestry.Breadcrumb(c)
		path := strings.Join(crumbs, " › ")
		if d.ancestry.Truncated {
			path = "… › " + path
		}
		fmt.Fprintf(&sb, "%s\n\n", path)
	}

	sb.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| ID | `%s` |\n", c.ID)
	fmt.Fprintf(&sb, "| Type | %s |\n", c.CollectionType.Label())
	switch {
	case !d.loaded:
		sb.WriteString("| Project | … |\n")
	case d.ancestry.ProjectID != "":
		fmt.Fprintf(&sb, "| Project | `%s` |\n", d.ancestry.ProjectID)
	default:
		sb.WriteString("| Project | unknown |\n")
	}
	switch {
	case !d.loaded:
		sb.WriteString("| Records | … |\n")
	case d.recordsErr != nil:
		sb.WriteString("| Records | unavailable |\n")
	default:
		fmt.Fprintf(&sb, "| Records | %d |\n", d.records)
	}
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "| Created | %s |\n", c.CreatedAt.Format("2006-01-02 15:04"))
	}
	if !c.UpdatedAt.IsZero() {
		fmt.Fprintf(&sb, "| Updated | %s |\n", c.UpdatedAt.Format("2006-01-02 15:04"))
	}
	sb.WriteString("\n")

	if c.Description != "" {
		sb.WriteString("### Description\n")
		sb.WriteString(c.Description + "\n\n")
	}

	if meta := formatMetadata(c.ArchivalMetadata); meta != "" {
		sb.WriteString("### Archival metadata\n")
		sb.WriteString("```json\n" + meta + "\n```\n\n")
	}
	return sb.String()
}

// formatMetadata pretty-prints raw archival metadata. Empty or null
// metadata yields "".
func formatMetadata(raw []byte) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return buf.String()
}
