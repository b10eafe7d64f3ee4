// Package observability provides formatted output for the CLI commands.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jonathan/group-harmony/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted CLI output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content. Long lines are
// wrapped rather than cut so narrative text stays readable.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	inner := boxWidth - 4
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, inner))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		for _, part := range wrap(line, inner) {
			fmt.Fprintf(p.out, "│ %s │\n", pad(part, inner))
		}
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// wrap splits line into rune-counted chunks of at most width, breaking at spaces when possible.
func wrap(line string, width int) []string {
	runes := []rune(line)
	if len(runes) <= width {
		return []string{line}
	}

	var out []string
	for len(runes) > width {
		cut := width
		for i := width; i > width/2; i-- {
			if runes[i] == ' ' {
				cut = i
				break
			}
		}
		out = append(out, strings.TrimRight(string(runes[:cut]), " "))
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " "))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// listSection writes a bulleted list capped at limit items.
func listSection(sb *strings.Builder, heading string, items []string, limit int) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(heading + ":\n")
	for _, item := range items[:min(len(items), limit)] {
		sb.WriteString(fmt.Sprintf("  • %s\n", item))
	}
	if len(items) > limit {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-limit))
	}
	sb.WriteString("\n")
}

func candidateNames(candidates []types.Candidate) []string {
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if name := c.Name(); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// PrintRecommendation outputs the candidates and narrative of a single- or multi-category result.
func (p *Printer) PrintRecommendation(resp *types.RecommendationResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Group:    %s\n", resp.GroupID))
	if resp.Type != "" {
		sb.WriteString(fmt.Sprintf("Category: %s\n", resp.Type))
	}
	if len(resp.Categories) > 0 {
		cats := make([]string, len(resp.Categories))
		for i, c := range resp.Categories {
			cats[i] = c.String()
		}
		sb.WriteString(fmt.Sprintf("Categories: %s\n", strings.Join(cats, ", ")))
	}
	sb.WriteString("\n")

	listSection(&sb, "Interests", resp.Interests, maxItemsToShow)
	for _, r := range resp.AllCategoryResults {
		listSection(&sb, fmt.Sprintf("%s (%d entities)", r.Category, len(r.EntityIDs)), candidateNames(r.Recommendations), 3)
	}
	listSection(&sb, "Candidates", candidateNames(resp.Recommendations), maxItemsToShow)

	p.printBox("GROUP RECOMMENDATION", strings.TrimSuffix(sb.String(), "\n"))
	p.PrintNarrative(resp.Narrative)
}

// PrintNarrative outputs the generated narrative.
func (p *Printer) PrintNarrative(n types.Narrative) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Harmony score: %d/100\n\n", n.HarmonyScore))
	sb.WriteString("Recommendation:\n" + n.Recommendation + "\n\n")
	if n.Alternative != "" {
		sb.WriteString("Alternative:\n" + n.Alternative + "\n\n")
	}
	sb.WriteString("Vibe:\n" + n.VibeAnalysis)

	p.printBox("NARRATIVE", sb.String())
}

// PrintItinerary outputs a day-by-day trip plan, or the parse error and raw reply.
func (p *Printer) PrintItinerary(resp *types.ItineraryResponse) {
	if resp == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Group:       %s\n", resp.GroupID))
	if resp.Destination != "" {
		sb.WriteString(fmt.Sprintf("Destination: %s\n", resp.Destination))
	}
	sb.WriteString(fmt.Sprintf("Days:        %d\n\n", resp.Days))

	for _, day := range resp.Itinerary {
		if day.Error != "" {
			sb.WriteString("Error: " + day.Error + "\n")
			if day.Raw != "" {
				sb.WriteString("Raw reply:\n" + day.Raw + "\n")
			}
			continue
		}
		sb.WriteString(fmt.Sprintf("Day %d", day.Day))
		if day.Description != "" {
			sb.WriteString(": " + day.Description)
		}
		sb.WriteString("\n")
		for _, a := range day.Activities {
			sb.WriteString("  • " + a + "\n")
		}
		sb.WriteString("\n")
	}

	p.printBox("ITINERARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDebugLog outputs the request trace.
func (p *Printer) PrintDebugLog(lines []string) {
	if len(lines) == 0 {
		return
	}
	p.printBox("DEBUG LOG", strings.Join(lines, "\n"))
}

// PrintEnvReport outputs the environment presence report in key order.
func (p *Printer) PrintEnvReport(report map[string]string) {
	keys := make([]string, 0, len(report))
	for k := range report {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("%-18s %s\n", k, report[k]))
	}
	p.printBox("ENVIRONMENT", strings.TrimSuffix(sb.String(), "\n"))
}
