package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/digitarc/pkg/devserver"
)

type devserverOptions struct {
	addr  string
	db    string
	seed  bool
	token string
}

func newDevserverCmd(opts *rootOptions) *cobra.Command {
	var o devserverOptions
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local development backend backed by SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(opts, "devserver")
			if err != nil {
				return err
			}
			defer e.Close()

			store, err := devserver.OpenStore(o.db)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			ctx := cmd.Context()
			if o.seed {
				p, err := devserver.Seed(ctx, store)
				if err != nil {
					return fmt.Errorf("seeding: %w", err)
				}
				fmt.Fprintf(out, "Seeded project %q: %s\n", p.Name, p.ID)
			}

			srv := devserver.NewServer(store, devserver.WithToken(o.token), devserver.WithLogger(e.logger))
			fmt.Fprintf(out, "Listening on %s%s\n", o.addr, devserver.APIPrefix)
			e.logger.Info("devserver listening", "addr", o.addr, "db", o.db)
			return srv.ListenAndServe(ctx, o.addr)
		},
	}
	cmd.Flags().StringVar(&o.addr, "addr", ":8089", "listen address")
	cmd.Flags().StringVar(&o.db, "db", ":memory:", "SQLite database path")
	cmd.Flags().BoolVar(&o.seed, "seed", false, "create a demo project on start")
	cmd.Flags().StringVar(&o.token, "token", "", "require this bearer token")
	return cmd
}
