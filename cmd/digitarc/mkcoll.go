package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/digitarc/pkg/model"
)

type mkcollOptions struct {
	name        string
	ctype       string
	description string
	projectID   string
	parentID    string
}

// payload turns the flags into a create request.
func (o mkcollOptions) payload() (model.CollectionCreate, error) {
	ct, err := parseCollectionType(o.ctype)
	if err != nil {
		return model.CollectionCreate{}, err
	}
	in := model.CollectionCreate{
		Name:           o.name,
		Description:    o.description,
		CollectionType: ct,
	}
	switch {
	case o.parentID != "":
		in.ParentCollectionID = model.Ptr(o.parentID)
	case o.projectID != "":
		in.ProjectID = model.Ptr(o.projectID)
	default:
		return model.CollectionCreate{}, errors.New("pass --project for a root collection or --parent for a subcollection")
	}
	if err := in.Validate(); err != nil {
		return model.CollectionCreate{}, err
	}
	return in, nil
}

func parseCollectionType(s string) (model.CollectionType, error) {
	ct := model.CollectionType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.IsValid() {
		names := make([]string, 0, len(model.AllCollectionTypes()))
		for _, t := range model.AllCollectionTypes() {
			if t != model.TypeUnset {
				names = append(names, string(t))
			}
		}
		return "", fmt.Errorf("unknown collection type %q (want one of %s)", s, strings.Join(names, ", "))
	}
	return ct, nil
}

func newMkcollCmd(opts *rootOptions) *cobra.Command {
	var o mkcollOptions
	cmd := &cobra.Command{
		Use:   "mkcoll",
		Short: "Create a collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := o.payload()
			if err != nil {
				return err
			}
			e, err := loadEnv(opts, "mkcoll")
			if err != nil {
				return err
			}
			defer e.Close()
			client, err := e.client()
			if err != nil {
				return err
			}

			c, err := client.Create(cmd.Context(), in)
			if err != nil {
				e.logger.Warn("create failed", "name", in.Name, "error", err)
				return fmt.Errorf("creating collection %q: %w", in.Name, err)
			}
			e.logger.Info("collection created", "id", c.ID, "parent", c.ParentID(), "project", c.Project())
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%s)\n", c.Name, c.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.name, "name", "", "collection name (required)")
	cmd.Flags().StringVar(&o.ctype, "type", "", "collection type: fonds, series, box, folder or volume")
	cmd.Flags().StringVar(&o.description, "description", "", "free-text description")
	cmd.Flags().StringVar(&o.projectID, "project", "", "create a root collection of this project")
	cmd.Flags().StringVar(&o.parentID, "parent", "", "create a subcollection of this collection")
	cmd.MarkFlagsMutuallyExclusive("project", "parent")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}
