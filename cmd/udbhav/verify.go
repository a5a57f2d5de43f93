// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"github.com/spf13/cobra"

	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check stored embeddings for orphans and malformed vectors",
		Long: "Report embeddings whose record no longer exists and embeddings whose stored vector " +
			"does not match the deployment dimension. Exits non-zero when any are found.",
		Args: cobra.NoArgs,
		RunE: runVerify,
	}
	cmd.Flags().Bool("json", false, "print the report as JSON")
	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")

	return withApp(cmd.Context(), func(app *App) error {
		report, err := app.Stores.Embeddings.Verify(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON {
			if err := writeJSON(cmd.OutOrStdout(), map[string]any{
				"total":     report.Total,
				"orphans":   nonNil(report.Orphans),
				"malformed": nonNil(report.Malformed),
			}); err != nil {
				return err
			}
		} else {
			renderVerify(cmd.OutOrStdout(), report)
		}

		if !report.OK() {
			return udberr.Errorf(udberr.CodeStoreEmbeddingScanConsistency,
				"%d orphaned and %d malformed embeddings", len(report.Orphans), len(report.Malformed))
		}
		return nil
	})
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
