package main

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/sells-group/prospect-cli/internal/enrich"
	"github.com/sells-group/prospect-cli/internal/model"
)

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatCandidates(out io.Writer, cands []model.DiscoveryCandidate) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tCOMPANY\tPHONE\tWEBSITE\tRATING\tCATEGORY")
	_, _ = fmt.Fprintln(w, "-\t-------\t-----\t-------\t------\t--------")
	for i, c := range cands {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f (%d)\t%s\n",
			i+1, c.CompanyName, c.Phone, c.Website, c.Rating, c.ReviewCount, c.Category)
	}
	_ = w.Flush()
}

func formatLeads(out io.Writer, leads []model.Lead) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tID\tCOMPANY\tCONTACT\tEMAIL\tSTAGE\tSCORE\tDEAL")
	_, _ = fmt.Fprintln(w, "-\t--\t-------\t-------\t-----\t-----\t-----\t----")
	for _, l := range leads {
		stage := l.Stage
		if stage == "" {
			stage = model.StageNew
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%.2f\n",
			l.LeadNumber, shortID(l.ID), l.CompanyName, l.ContactName, l.Email, stage, l.QualityScore, l.DealValue)
	}
	_ = w.Flush()
}

func formatBoard(out io.Writer, leads []model.Lead) {
	groups := model.GroupByStage(leads)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "STAGE\tLEADS\tDEAL VALUE")
	for _, st := range model.Stages {
		g := groups[st]
		_, _ = fmt.Fprintf(w, "%s\t%d\t%.2f\n", st, len(g), model.TotalDealValue(g))
	}
	_ = w.Flush()
}

func formatSummary(out io.Writer, s enrich.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Enriched:\t%d\n", s.Enriched)
	_, _ = fmt.Fprintf(w, "Degraded:\t%d\n", s.Degraded)
	_ = w.Flush()
}

func formatProjects(out io.Writer, projects []model.ProjectSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tLEADS\tSTRATEGIES\tLAST ACTIVITY")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----------\t-------------")
	for _, p := range projects {
		last := "-"
		if p.LastActivity != nil {
			last = p.LastActivity.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", p.ID, p.Name, p.LeadCount, p.StrategyCount, last)
	}
	_ = w.Flush()
}

func formatStrategies(out io.Writer, strategies []model.SavedStrategy) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPERSONA\tSEARCH QUERY\tANGLE")
	_, _ = fmt.Fprintln(w, "--\t-------\t------------\t-----")
	for _, s := range strategies {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.PersonaName, s.SearchQuery, s.OutreachAngle)
	}
	_ = w.Flush()
}

func formatFieldErrors(fields map[string]string) string {
	parts := make([]string, 0, len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
