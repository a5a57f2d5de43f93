// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/udbhav-health/udbhav/internal/records"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

const dateLayout = "2006-01-02"

func newRecordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Manage records",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a record and embed its summary",
		Args:  cobra.NoArgs,
		RunE:  runRecordAdd,
	}
	add.Flags().String("owner", "", "owner ID (required)")
	add.Flags().String("summary", "", "text that is embedded for search")
	add.Flags().String("description", "", "free-form description")
	add.Flags().String("date", "", "record date as YYYY-MM-DD (default today)")
	add.Flags().String("mime-type", "", "MIME type of the source document")
	_ = add.MarkFlagRequired("owner")

	list := &cobra.Command{
		Use:   "list",
		Short: "List an owner's records, newest first",
		Args:  cobra.NoArgs,
		RunE:  runRecordList,
	}
	list.Flags().String("owner", "", "owner ID (required)")
	list.Flags().Int("limit", 0, "maximum records to list (0 for all)")
	_ = list.MarkFlagRequired("owner")

	cmd.AddCommand(
		add,
		list,
		&cobra.Command{
			Use:   "delete <record-id>",
			Short: "Delete a record and its embedding",
			Args:  cobra.ExactArgs(1),
			RunE:  runRecordDelete,
		},
	)
	return cmd
}

func runRecordAdd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	owner, _ := flags.GetString("owner")
	summary, _ := flags.GetString("summary")
	description, _ := flags.GetString("description")
	mimeType, _ := flags.GetString("mime-type")
	dateStr, _ := flags.GetString("date")

	in := records.NewRecord{OwnerID: owner, Summary: summary, Description: description, MimeType: mimeType}
	if dateStr != "" {
		d, err := time.Parse(dateLayout, dateStr)
		if err != nil {
			return udberr.Errorf(udberr.CodeCLIInputInvalid, "invalid --date %q: expected YYYY-MM-DD", dateStr)
		}
		in.RecordDate = d
	}

	return withApp(cmd.Context(), func(app *App) error {
		saved, err := app.Records.CreateRecord(cmd.Context(), in)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Created record %s\n", saved.Record.ID)
		switch {
		case saved.Embedded:
			_, _ = fmt.Fprintln(out, okStyle.Render("✓")+" summary embedded")
		case saved.EmbedError != nil:
			_, _ = fmt.Fprintf(out, "%s embedding deferred to reconciliation: %v\n", failStyle.Render("✗"), saved.EmbedError)
		}
		return nil
	})
}

func runRecordList(cmd *cobra.Command, _ []string) error {
	owner, _ := cmd.Flags().GetString("owner")
	limit, _ := cmd.Flags().GetInt("limit")

	return withApp(cmd.Context(), func(app *App) error {
		recs, err := app.Records.ListRecords(cmd.Context(), owner, store.ListOpts{Limit: limit})
		if err != nil {
			return err
		}
		renderRecords(cmd.OutOrStdout(), recs)
		return nil
	})
}

func runRecordDelete(cmd *cobra.Command, args []string) error {
	return withApp(cmd.Context(), func(app *App) error {
		if err := app.Records.DeleteRecord(cmd.Context(), args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted record %s\n", args[0])
		return nil
	})
}
