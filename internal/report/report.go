// Package report turns raw per-function results into a deterministic,
// deduplicated diagnostic list.
package report

import (
	"fmt"
	"sort"
	"strings"

	"ceiscan/internal/cfg"
	"ceiscan/internal/order"
	"ceiscan/internal/tagger"
)

// Result is the outcome for a single function: either its findings or the
// analysis error that kept it from being analyzed, never both. Advisories
// from the tagger ride along either way.
type Result struct {
	Function   string
	Findings   []order.Finding
	Advisories []tagger.Advisory
	Err        *cfg.AnalysisError
}

// Report is the merged outcome of one run over a function collection.
type Report struct {
	Findings   []order.Finding
	Advisories []tagger.Advisory
	Errors     []*cfg.AnalysisError
}

// New merges per-function results, sorts everything by function name and
// source location and drops duplicate findings. Pure transform.
func New(results []Result) *Report {
	r := &Report{}
	seen := make(map[order.Finding]struct{})
	for _, res := range results {
		for _, f := range res.Findings {
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			r.Findings = append(r.Findings, f)
		}
		r.Advisories = append(r.Advisories, res.Advisories...)
		if res.Err != nil {
			r.Errors = append(r.Errors, res.Err)
		}
	}

	sort.Slice(r.Findings, func(i, j int) bool {
		a, b := r.Findings[i], r.Findings[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		if a.InteractionLoc != b.InteractionLoc {
			return a.InteractionLoc.Less(b.InteractionLoc)
		}
		if a.EffectLoc != b.EffectLoc {
			return a.EffectLoc.Less(b.EffectLoc)
		}
		return a.Kind < b.Kind
	})
	sort.Slice(r.Advisories, func(i, j int) bool {
		a, b := r.Advisories[i], r.Advisories[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		if a.Loc != b.Loc {
			return a.Loc.Less(b.Loc)
		}
		return a.Target < b.Target
	})
	sort.Slice(r.Errors, func(i, j int) bool {
		a, b := r.Errors[i], r.Errors[j]
		if a.Function != b.Function {
			return a.Function < b.Function
		}
		return a.Loc.Less(b.Loc)
	})
	return r
}

// Clean reports whether the run produced neither findings nor errors.
func (r *Report) Clean() bool {
	return len(r.Findings) == 0 && len(r.Errors) == 0
}

func (r *Report) String() string {
	var sb strings.Builder
	for _, f := range r.Findings {
		head := fmt.Sprintf("[%s] %s\n", f.Kind, f.Function)
		sb.WriteString(Colour(31, head))
		fmt.Fprintf(&sb, "  interaction at %s precedes effect at %s\n",
			f.InteractionLoc, f.EffectLoc)
	}
	for _, adv := range r.Advisories {
		sb.WriteString(Colour(33, fmt.Sprintf("[advisory] %s\n", adv)))
	}
	for _, err := range r.Errors {
		sb.WriteString(Colour(35, fmt.Sprintf("[analysis error] %s\n", err)))
	}
	if r.Clean() {
		sb.WriteString("no CEI ordering violations found\n")
	}
	return sb.String()
}

func Colour(color int, str string) string {
	return fmt.Sprintf("\033[%dm%s\033[0m", color, str)
}
