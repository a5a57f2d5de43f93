// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Rank records by similarity to a free-text query",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().IntP("k", "k", 0, "number of results (0 uses search.default_k)")
	cmd.Flags().String("owner", "", "restrict results to one owner ID")
	cmd.Flags().Bool("json", false, "print results as JSON")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "similar <record-id>",
		Short: "Rank records by similarity to an existing record",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimilar,
	}
	cmd.Flags().IntP("k", "k", 0, "number of results (0 uses search.default_k)")
	cmd.Flags().Bool("json", false, "print results as JSON")
	return cmd
}

func resultLimit(cmd *cobra.Command, app *App) int {
	if k, _ := cmd.Flags().GetInt("k"); k != 0 {
		return k
	}
	return app.Config.Search.DefaultK
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	owner, _ := cmd.Flags().GetString("owner")
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd.Context(), func(app *App) error {
		hits, err := app.Search.Search(cmd.Context(), query, resultLimit(cmd, app), owner)
		if err != nil {
			return err
		}
		return renderHits(cmd.OutOrStdout(), fmt.Sprintf("Results for %q", query), hits, asJSON)
	})
}

func runSimilar(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd.Context(), func(app *App) error {
		hits, err := app.Search.FindSimilar(cmd.Context(), args[0], resultLimit(cmd, app))
		if err != nil {
			return err
		}
		return renderHits(cmd.OutOrStdout(), "Records similar to "+args[0], hits, asJSON)
	})
}
