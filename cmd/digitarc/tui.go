package main

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/vanderheijden86/digitarc/pkg/config"
	"github.com/vanderheijden86/digitarc/pkg/tree"
	"github.com/vanderheijden86/digitarc/pkg/ui"
)

// sourceFlags selects the tree root; shared by tui and tree.
type sourceFlags struct {
	projectID    string
	collectionID string
}

func (f *sourceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.projectID, "project", "", "show the root collections of this project")
	cmd.Flags().StringVar(&f.collectionID, "collection", "", "show the subtree under this collection")
	cmd.MarkFlagsMutuallyExclusive("project", "collection")
}

// resolve returns the source, falling back to the first favorite project.
func (f *sourceFlags) resolve(cfg config.Config) (tree.Source, error) {
	switch {
	case f.collectionID != "":
		return tree.Source{CollectionID: f.collectionID}, nil
	case f.projectID != "":
		return tree.Source{ProjectID: f.projectID}, nil
	}
	if favs := cfg.Favorites(); len(favs) > 0 {
		return tree.Source{ProjectID: favs[0].ID}, nil
	}
	if len(cfg.Projects) > 0 {
		return tree.Source{ProjectID: cfg.Projects[0].ID}, nil
	}
	return tree.Source{}, errors.New("no project selected: pass --project or --collection, or add a project to the config")
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	var src sourceFlags
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive collection tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, "tui")
			if err != nil {
				return err
			}
			defer e.Close()

			source, err := src.resolve(e.cfg)
			if err != nil {
				return err
			}
			client, err := e.client()
			if err != nil {
				return err
			}

			m, err := ui.NewModel(cmd.Context(), ui.Options{
				Service: client,
				Source:  source,
				Config:  e.cfg,
				Logger:  e.logger,
			})
			if err != nil {
				return err
			}
			e.logger.Info("tui started", "source", source.String(), "strategy", e.cfg.Tree.Strategy)

			p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running TUI: %w", err)
			}
			return nil
		},
	}
	src.register(cmd)
	return cmd
}
