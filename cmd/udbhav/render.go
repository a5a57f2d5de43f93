// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Udbhav Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/udbhav-health/udbhav/internal/reconcile"
	"github.com/udbhav-health/udbhav/internal/search"
	"github.com/udbhav-health/udbhav/internal/store"
	udberr "github.com/udbhav-health/udbhav/pkg/errors"
)

var (
	rankStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Bold(true)
	previewStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

const previewWidth = 72

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len([]rune(s)) <= previewWidth {
		return s
	}
	return string([]rune(s)[:previewWidth-1]) + "…"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return udberr.Errorf(udberr.CodeCLIRenderFailure, "encoding output: %w", err)
	}
	return nil
}

type hitJSON struct {
	RecordID   string  `json:"record_id"`
	OwnerID    string  `json:"owner_id"`
	Similarity float64 `json:"similarity"`
	Summary    string  `json:"summary"`
}

func renderHits(w io.Writer, title string, hits []search.Hit, asJSON bool) error {
	if asJSON {
		out := make([]hitJSON, 0, len(hits))
		for _, h := range hits {
			out = append(out, hitJSON{
				RecordID:   h.Record.ID,
				OwnerID:    h.Record.OwnerID,
				Similarity: h.Similarity,
				Summary:    h.Record.Summary,
			})
		}
		return writeJSON(w, out)
	}

	_, _ = fmt.Fprintf(w, "\n%s\n\n", headerStyle.Render(title))
	if len(hits) == 0 {
		_, _ = fmt.Fprintf(w, "  %s\n\n", dimStyle.Render("(no matching records)"))
		return nil
	}
	for i, h := range hits {
		_, _ = fmt.Fprintf(w, "  %s %s %s\n",
			rankStyle.Render(fmt.Sprintf("#%d", i+1)),
			scoreStyle.Render(fmt.Sprintf("similarity: %.4f", h.Similarity)),
			idStyle.Render(h.Record.ID),
		)
		_, _ = fmt.Fprintf(w, "     %s\n", previewStyle.Render(preview(h.Record.Summary)))
		_, _ = fmt.Fprintf(w, "     %s\n\n", dimStyle.Render(h.Record.RecordDate.Format("2006-01-02")+"  owner "+h.Record.OwnerID))
	}
	return nil
}

func renderRecords(w io.Writer, recs []*store.Record) {
	if len(recs) == 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render("No records."))
		return
	}
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s  %s  %s\n",
			idStyle.Render(r.ID),
			dimStyle.Render(r.RecordDate.Format("2006-01-02")),
			previewStyle.Render(preview(r.Summary)),
		)
	}
}

func renderOwners(w io.Writer, owners []*store.Owner) {
	if len(owners) == 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render("No owners."))
		return
	}
	for _, o := range owners {
		_, _ = fmt.Fprintf(w, "%s  %s  %s\n", idStyle.Render(o.ID), o.Username, dimStyle.Render(o.Email))
	}
}

func renderReconcile(w io.Writer, res *reconcile.Result) {
	if res.DryRun {
		_, _ = fmt.Fprintf(w, "%d records need embedding (dry run)\n", res.Candidates)
		return
	}

	mark := okStyle.Render("✓")
	if len(res.Failed) > 0 {
		mark = failStyle.Render("✗")
	}
	_, _ = fmt.Fprintf(w, "%s Embedded %d of %d candidate records (%d skipped, %d failed, %d orphans pruned) in %s\n",
		mark, res.Succeeded, res.Candidates, res.Skipped, len(res.Failed), res.Pruned, res.Duration.Round(time.Millisecond))
	for _, f := range res.Failed {
		_, _ = fmt.Fprintf(w, "  %s %s %s\n", failStyle.Render("✗"), idStyle.Render(f.RecordID), dimStyle.Render(f.Err.Error()))
	}
}

func renderVerify(w io.Writer, report *store.VerifyReport) {
	if report.OK() {
		_, _ = fmt.Fprintf(w, "%s %d embeddings checked, no problems found\n", okStyle.Render("✓"), report.Total)
		return
	}

	_, _ = fmt.Fprintf(w, "%s %d embeddings checked: %d orphaned, %d malformed\n",
		failStyle.Render("✗"), report.Total, len(report.Orphans), len(report.Malformed))
	for _, id := range report.Orphans {
		_, _ = fmt.Fprintf(w, "  %s %s\n", idStyle.Render(id), dimStyle.Render("record missing"))
	}
	for _, id := range report.Malformed {
		_, _ = fmt.Fprintf(w, "  %s %s\n", idStyle.Render(id), dimStyle.Render("vector does not match dimension"))
	}
	if len(report.Orphans) > 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render("run `udbhav reconcile` to prune orphaned embeddings"))
	}
	if len(report.Malformed) > 0 {
		_, _ = fmt.Fprintln(w, dimStyle.Render("run `udbhav reconcile --force` to rewrite malformed vectors"))
	}
}
