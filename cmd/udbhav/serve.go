// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background reconciliation",
		Long:  "Load configuration, wire the provider and stores, and serve the HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("networking.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	return withApp(ctx, func(app *App) error {
		srv, err := app.Server()
		if err != nil {
			return err
		}
		defer func() { _ = srv.Close() }()

		// The reconciler must stop before withApp closes the stores.
		bgCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer wg.Wait()
		defer cancel()

		if interval := app.Config.Reconcile.Interval; interval > 0 {
			wg.Go(func() { app.Reconciler.Start(bgCtx, interval) })
		} else {
			slog.Info("background reconciliation disabled")
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Serving udbhav on %s (provider %s, %d dimensions, %s backend)\n",
			app.Config.Networking.Listen, app.Provider.Name(), app.Provider.Dimension(), app.Stores.Backend)

		return srv.Start(ctx)
	})
}
