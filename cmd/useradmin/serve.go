package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Skryldev/useradmin/api"
	"github.com/Skryldev/useradmin/server"
	"github.com/Skryldev/useradmin/web"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Serve the user REST API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.db.Close()

		return runServers(cmd.Context(), newAPIServer(st))
	},
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Serve the browser admin interface against a running API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := newUIServer()
		if err != nil {
			return err
		}
		return runServers(cmd.Context(), srv)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the API and the admin interface side by side",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.db.Close()

		ui, err := newUIServer()
		if err != nil {
			return err
		}
		return runServers(cmd.Context(), newAPIServer(st), ui)
	},
}

func newAPIServer(st *store) *server.Server {
	l := logger.With("component", "api")
	srv := server.New(server.Config{Addr: cfg.APIAddr}, l)
	api.NewHandler(st.users, st.db, l).Register(srv.Router())
	return srv
}

func newUIServer() (*server.Server, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}
	l := logger.With("component", "ui")
	srv := server.New(server.Config{Addr: cfg.UIAddr}, l)
	web.NewHandler(c, l).Register(srv.Router())
	return srv, nil
}

// runServers serves until ctx is done or one server fails, then stops all
// of them gracefully.
func runServers(ctx context.Context, servers ...*server.Server) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		g.Go(s.Start)
	}
	g.Go(func() error {
		<-gctx.Done()
		var errs []error
		for _, s := range servers {
			errs = append(errs, s.Stop(context.Background()))
		}
		return errors.Join(errs...)
	})
	return g.Wait()
}
