package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"iochunt/core"
	"iochunt/threat"

	"github.com/fatih/color"
)

func renderClassifications(w io.Writer, rows []classifiedValue) {
	fmt.Fprintf(w, "%-14s %-8s %s\n", "KIND", "HASH", "VALUE")
	fmt.Fprintln(w, strings.Repeat("-", 72))
	for _, r := range rows {
		hash := string(r.HashAlgorithm)
		if hash == "" {
			hash = "-"
		}
		fmt.Fprintf(w, "%-14s %-8s %s\n", r.Kind, hash, r.Value)
	}
}

func renderImportResult(w io.Writer, result importResult, quiet bool) {
	for _, e := range result.Errors {
		errorColor.Fprintf(w, "✗ %s\n", e)
	}
	if quiet {
		return
	}
	successColor.Fprintf(w, "✓ Imported %d indicator(s)", result.Created)
	fmt.Fprintf(w, ", %d duplicate(s) skipped, %d invalid\n", result.Skipped, result.Invalid)
}

// renderIndicatorsTable displays indicators in a formatted table
func renderIndicatorsTable(w io.Writer, inds []*core.Indicator, total int64) {
	if len(inds) == 0 {
		warningColor.Fprintln(w, "No indicators found")
		return
	}

	headerColor.Fprintf(w, "INDICATORS (%d of %d)\n", len(inds), total)
	headerColor.Fprintln(w, strings.Repeat("=", 100))
	fmt.Fprintf(w, "%-10s %-14s %-9s %-7s %s\n", "ID", "Kind", "Severity", "Active", "Value")
	fmt.Fprintln(w, strings.Repeat("-", 100))

	for _, ind := range inds {
		fmt.Fprintf(w, "%-10s %-14s %-9s %-7s %s\n",
			shortID(ind.ID), ind.Kind, ind.Severity, formatBoolPlain(ind.IsActive), truncate(ind.Value, 60))
	}
	fmt.Fprintln(w, strings.Repeat("=", 100))
}

// renderHuntSummary prints the outcome of a hunt run
func renderHuntSummary(w io.Writer, job *core.HuntJob) {
	fmt.Fprintln(w)
	headerColor.Fprintf(w, "  Hunt: %s\n", job.Name)
	headerColor.Fprintln(w, "  "+strings.Repeat("─", len(job.Name)+6))
	printField(w, "ID", job.ID)
	printField(w, "Status", formatHuntStatus(job.Status))
	printField(w, "Indicators", fmt.Sprintf("%d", len(job.IndicatorIDs)))
	printField(w, "Matches", fmt.Sprintf("%d", job.MatchesFound))
	printField(w, "Endpoints", fmt.Sprintf("%d", job.TotalEndpoints))
	if job.StartedAt != nil && job.CompletedAt != nil {
		printField(w, "Duration", job.CompletedAt.Sub(*job.StartedAt).Round(time.Millisecond).String())
	}
	if job.Error != "" {
		printField(w, "Error", errorColor.Sprint(job.Error))
	}
	fmt.Fprintln(w)
}

// renderHuntDetails prints a job followed by its matches
func renderHuntDetails(w io.Writer, job *core.HuntJob, matches []*core.Match, total int64) {
	renderHuntSummary(w, job)
	printField(w, "Created", formatTime(job.CreatedAt))
	if job.CreatedBy != "" {
		printField(w, "Created by", job.CreatedBy)
	}
	fmt.Fprintln(w)

	if len(matches) == 0 {
		warningColor.Fprintln(w, "  No matches")
		return
	}

	headerColor.Fprintf(w, "  MATCHES (%d of %d)\n", len(matches), total)
	fmt.Fprintf(w, "  %-10s %-10s %-16s %-9s %s\n", "ID", "Source", "Endpoint", "Reviewed", "Matched value")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 96))
	for _, m := range matches {
		fmt.Fprintf(w, "  %-10s %-10s %-16s %-9s %s\n",
			shortID(m.ID), m.Source, truncate(m.EndpointID, 16), formatBoolPlain(m.Reviewed), truncate(m.MatchedValue, 50))
	}
}

// renderQuickSearch prints quick search hits grouped in source order
func renderQuickSearch(w io.Writer, resp *threat.QuickSearchResponse) {
	kind := string(resp.Kind)
	if resp.HashAlgorithm != "" {
		kind += " (" + string(resp.HashAlgorithm) + ")"
	}
	infoColor.Fprintf(w, "Query %q classified as %s\n", resp.Query, kind)

	if len(resp.Results) == 0 {
		warningColor.Fprintln(w, "No endpoints matched")
	} else {
		fmt.Fprintf(w, "%-10s %-16s %-20s %s\n", "Source", "Endpoint", "Hostname", "Matched value")
		fmt.Fprintln(w, strings.Repeat("-", 100))
		for _, r := range resp.Results {
			host := r.Hostname
			if host == "" {
				host = "-"
			}
			fmt.Fprintf(w, "%-10s %-16s %-20s %s\n",
				r.Source, truncate(r.EndpointID, 16), truncate(host, 20), truncate(r.MatchedValue, 50))
		}
	}

	for _, src := range resp.TruncatedSources {
		warningColor.Fprintf(w, "! %s results were truncated at the source cap\n", src)
	}
}

// printField prints a key-value field
func printField(w io.Writer, key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Fprintf(w, "  %-12s %s\n", key+":", value)
}

// formatHuntStatus returns a colored status string
func formatHuntStatus(status core.HuntStatus) string {
	switch status {
	case core.HuntStatusCompleted:
		return color.New(color.FgGreen).Sprint(status)
	case core.HuntStatusRunning:
		return color.New(color.FgCyan).Sprint(status)
	case core.HuntStatusFailed:
		return color.New(color.FgRed).Sprint(status)
	default:
		return string(status)
	}
}

func formatBoolPlain(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// formatTime formats a timestamp
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
