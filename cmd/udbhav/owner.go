// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/udbhav-health/udbhav/internal/records"
	"github.com/udbhav-health/udbhav/internal/store"
)

func newOwnerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "owner",
		Short: "Manage record owners",
	}

	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an owner",
		Args:  cobra.ExactArgs(1),
		RunE:  runOwnerAdd,
	}
	add.Flags().String("email", "", "owner email address")

	list := &cobra.Command{
		Use:   "list",
		Short: "List owners",
		Args:  cobra.NoArgs,
		RunE:  runOwnerList,
	}
	list.Flags().Int("limit", 0, "maximum owners to list (0 for all)")

	cmd.AddCommand(
		add,
		list,
		&cobra.Command{
			Use:   "delete <owner-id>",
			Short: "Delete an owner with all of their records and embeddings",
			Args:  cobra.ExactArgs(1),
			RunE:  runOwnerDelete,
		},
	)
	return cmd
}

func runOwnerAdd(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")

	return withApp(cmd.Context(), func(app *App) error {
		owner, err := app.Records.CreateOwner(cmd.Context(), records.NewOwner{Username: args[0], Email: email})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created owner %s (%s)\n", owner.ID, owner.Username)
		return nil
	})
}

func runOwnerList(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	return withApp(cmd.Context(), func(app *App) error {
		owners, err := app.Records.ListOwners(cmd.Context(), store.ListOpts{Limit: limit})
		if err != nil {
			return err
		}
		renderOwners(cmd.OutOrStdout(), owners)
		return nil
	})
}

func runOwnerDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		if err := app.Records.DeleteOwner(cmd.Context(), args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted owner %s\n", args[0])
		return nil
	})
}
