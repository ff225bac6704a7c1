package devserver

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

// seedNode describes one collection of the demo hierarchy.
type seedNode struct {
	name     string
	ctype    model.CollectionType
	children []seedNode
	records  int
}

var demoForest = []seedNode{
	{name: "Municipal council", ctype: model.TypeFonds, children: []seedNode{
		{name: "Minutes 1900-1950", ctype: model.TypeSeries, children: []seedNode{
			{name: "Box 1", ctype: model.TypeBox, records: 3},
			{name: "Box 2", ctype: model.TypeBox, children: []seedNode{
				{name: "Folder 2a", ctype: model.TypeFolder, records: 2},
			}},
		}},
		{name: "Correspondence", ctype: model.TypeSeries},
	}},
	{name: "Parish registers", ctype: model.TypeFonds, children: []seedNode{
		{name: "Baptisms vol. I", ctype: model.TypeVolume, records: 1},
	}},
	{name: "Loose acquisitions"},
}

// Seed creates a demo project with a nested collection forest, a few
// records per leaf and one orphaned record. It returns the project.
func Seed(ctx context.Context, s *Store) (model.Project, error) {
	p, err := s.CreateProject(ctx, "Demo archive", "Sample hierarchy for local development", "devserver")
	if err != nil {
		return model.Project{}, err
	}
	for _, n := range demoForest {
		if err := seedCollection(ctx, s, p.ID, n, model.CollectionCreate{ProjectID: model.Ptr(p.ID)}); err != nil {
			return model.Project{}, err
		}
	}
	if _, err := s.CreateRecord(ctx, model.Record{Title: "Unsorted photograph"}); err != nil {
		return model.Project{}, fmt.Errorf("seeding orphan record: %w", err)
	}
	return p, nil
}

func seedCollection(ctx context.Context, s *Store, projectID string, n seedNode, placement model.CollectionCreate) error {
	placement.Name = n.name
	placement.CollectionType = n.ctype
	c, err := s.CreateCollection(ctx, placement)
	if err != nil {
		return fmt.Errorf("seeding %q: %w", n.name, err)
	}
	for i := 1; i <= n.records; i++ {
		_, err := s.CreateRecord(ctx, model.Record{
			Title:        fmt.Sprintf("%s, item %d", n.name, i),
			ProjectID:    model.Ptr(projectID),
			CollectionID: model.Ptr(c.ID),
		})
		if err != nil {
			return fmt.Errorf("seeding record: %w", err)
		}
	}
	for _, child := range n.children {
		if err := seedCollection(ctx, s, projectID, child, model.CollectionCreate{ParentCollectionID: model.Ptr(c.ID)}); err != nil {
			return err
		}
	}
	return nil
}
