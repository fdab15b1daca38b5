// Package output provides utilities for formatting and displaying optimization results.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/lineup-optimizer/internal/result"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PrettyFormat outputs a human-readable rather than machine-readable summary.
func PrettyFormat(w io.Writer, r result.Result) {
	p := message.NewPrinter(language.English)
	fmt.Fprintf(w, "--- %s lineup (%s) ---\n", r.Optimizer, r.Policy)
	fmt.Fprintf(w, "Slot | Player\n")
	fmt.Fprintf(w, "____ | ______\n")
	for i, b := range r.Lineup {
		name := b.Name
		if name == "" {
			name = b.ID
		}
		fmt.Fprintf(w, "%4d | %s\n", i+1, name)
	}
	fmt.Fprintf(w, "\n")
	_, _ = p.Fprintf(w, "Expected runs: %.3f\n", r.Score)
	_, _ = p.Fprintf(w, "Lineups:       %d of %d (%.1f%%)\n", r.CountCompleted, r.CountTotal, r.Percent())
	_, _ = p.Fprintf(w, "Games:         %d\n", r.Details.GamesSimulated)
	if r.EstimatedTotalMs != nil && r.Status == result.NotStarted {
		_, _ = p.Fprintf(w, "Estimate:      %d ms\n", *r.EstimatedTotalMs)
	} else {
		_, _ = p.Fprintf(w, "Elapsed:       %d ms\n", r.ElapsedMs)
	}
	fmt.Fprintf(w, "Status:        %s\n", r.Status)

	var notes []string
	if r.Details.BudgetExhausted {
		notes = append(notes, "budget exhausted before the search finished")
	}
	if r.Details.Degraded {
		notes = append(notes, "stopped early after repeated simulation failures")
	}
	if r.Error != "" {
		notes = append(notes, r.Error)
	}
	if len(notes) > 0 {
		fmt.Fprintf(w, "Notes:         %s\n", strings.Join(notes, "; "))
	}
}

// CsvFormat outputs one row per batting slot in comma-separated value format.
func CsvFormat(w io.Writer, r result.Result) {
	fmt.Fprintf(w, `"slot","id","name","score"`+"\n")
	for i, b := range r.Lineup {
		fmt.Fprintf(w, `"%d","%s","%s","%.4f"`+"\n", i+1, csvEscape(b.ID), csvEscape(b.Name), r.Score)
	}
}

func csvEscape(s string) string {
	return strings.ReplaceAll(s, `"`, `""`)
}

// JSONFormat writes the result document.
func JSONFormat(w io.Writer, r result.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
