package mcp

import (
	"fmt"
	"strings"

	"github.com/pario-ai/promptlab/pkg/models"
)

const timeLayout = "2006-01-02 15:04:05"

func formatTemplates(list []models.TemplateSummary) string {
	if len(list) == 0 {
		return "No templates found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %s\n", "ID", "Name")
	b.WriteString(strings.Repeat("-", 60) + "\n")
	for _, t := range list {
		fmt.Fprintf(&b, "%-38s %s\n", t.ID, t.Name)
	}
	return b.String()
}

func formatTemplate(t *models.PromptTemplate, v models.PromptVersion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Template %s (%s)\n", t.Name, t.ID)
	fmt.Fprintf(&b, "  Version: %d of %d\n", v.VersionID, t.Latest().VersionID)
	fmt.Fprintf(&b, "  Created: %s\n", v.CreatedAt.Format(timeLayout))
	if v.Snapshot.ModelID != "" {
		fmt.Fprintf(&b, "  Model:   %s\n", v.Snapshot.ModelID)
	}
	if v.Snapshot.SystemInstruction != "" {
		fmt.Fprintf(&b, "  System:  %s\n", v.Snapshot.SystemInstruction)
	}
	fmt.Fprintf(&b, "\n%s\n", v.Snapshot.Body)
	return b.String()
}

func formatVersions(list []models.VersionInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%7s  %s\n", "Version", "Created")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	for _, v := range list {
		fmt.Fprintf(&b, "%7d  %s\n", v.VersionID, v.CreatedAt.Format(timeLayout))
	}
	return b.String()
}

func formatCacheEntries(list []models.CacheEntry) string {
	if len(list) == 0 {
		return "No cache entries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-52s %-20s %-25s %5s  %s\n", "Handle", "Name", "Model", "Parts", "Expires")
	b.WriteString(strings.Repeat("-", 125) + "\n")
	for _, e := range list {
		fmt.Fprintf(&b, "%-52s %-20s %-25s %5d  %s\n",
			e.Handle, e.DisplayName, e.ModelID, len(e.Payload), e.ExpiresAt.Format(timeLayout))
	}
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Cache Statistics\n"+
		"  Entries:  %d\n"+
		"  Active:   %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Active, stats.Hits, stats.Misses, hitRate)
}

func formatSummary(rows []models.UsageSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-25s %8s %10s %10s %10s %10s\n",
		"Model", "Requests", "Prompt", "Cached", "Completion", "Total")
	b.WriteString(strings.Repeat("-", 78) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-25s %8d %10d %10d %10d %10d\n",
			r.Model, r.RequestCount, r.TotalPrompt, r.TotalCached, r.TotalCompletion, r.TotalTokens)
	}
	return b.String()
}

func formatBudgetStatus(statuses []models.BudgetStatus) string {
	if len(statuses) == 0 {
		return "No budget policies found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-25s %-8s %12s %12s %12s %6s\n",
		"Model", "Period", "Max Tokens", "Used", "Remaining", "Usage%")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, s := range statuses {
		pct := float64(0)
		if s.Policy.MaxTokens > 0 {
			pct = float64(s.Used) / float64(s.Policy.MaxTokens) * 100
		}
		fmt.Fprintf(&b, "%-25s %-8s %12d %12d %12d %5.1f%%\n",
			s.Policy.Model, s.Policy.Period, s.Policy.MaxTokens, s.Used, s.Remaining, pct)
	}
	return b.String()
}
