// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/udbhav-health/udbhav/internal/reconcile"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func newReconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Embed records whose embedding is missing or outdated",
		Long: "Find records with a summary but no embedding for their current version, " +
			"generate embeddings in batches, and prune embeddings left behind by deleted records.",
		Args: cobra.NoArgs,
		RunE: runReconcile,
	}
	cmd.Flags().Bool("force", false, "regenerate every embedding, including current ones")
	cmd.Flags().String("owner", "", "only reconcile one owner's records")
	cmd.Flags().Bool("dry-run", false, "report candidates without embedding them")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	force, _ := cmd.Flags().GetBool("force")
	owner, _ := cmd.Flags().GetString("owner")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd.Context(), func(app *App) error {
		res, err := app.Reconciler.RunRequest(cmd.Context(), reconcile.Request{
			Force:   force,
			OwnerID: owner,
			DryRun:  dryRun,
		})
		if err != nil {
			return err
		}

		if asJSON {
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"candidates": res.Candidates,
				"succeeded":  res.Succeeded,
				"skipped":    res.Skipped,
				"failed":     res.FailedIDs(),
				"pruned":     res.Pruned,
				"dry_run":    res.DryRun,
			}); err != nil {
				return err
			}
		} else {
			renderReconcile(cmd.OutOrStdout(), res)
		}

		if len(res.Failed) > 0 {
			return udberr.Errorf(udberr.CodeReconcileRunIncomplete, "%d of %d records failed to embed", len(res.Failed), res.Candidates)
		}
		return nil
	})
}
