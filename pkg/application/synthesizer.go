package application

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// EvidenceContext is the bounded evidence handed to the judgment call.
type EvidenceContext struct {
	Text      string
	Refs      []string
	Fragments []review.EvidenceFragment
	Dropped   int
}

// Synthesize merges fragments into one bounded text. Fragments are ordered
// by source (ontology, graph, vector) then relevance, deduplicated by
// reference id, and tagged with their source. When the rendered text
// exceeds budget characters, the least relevant fragments are dropped
// whole until it fits. A budget of zero or less means unbounded.
func Synthesize(fragments []review.EvidenceFragment, budget int) EvidenceContext {
	ordered := make([]review.EvidenceFragment, len(fragments))
	copy(ordered, fragments)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if ra, rb := a.Source.Rank(), b.Source.Rank(); ra != rb {
			return ra < rb
		}
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		return a.ReferenceID < b.ReferenceID
	})

	seen := make(map[string]bool, len(ordered))
	unique := ordered[:0]
	for _, f := range ordered {
		if seen[f.ReferenceID] {
			continue
		}
		seen[f.ReferenceID] = true
		unique = append(unique, f)
	}

	entries := make([]string, len(unique))
	total := 0
	for i, f := range unique {
		entries[i] = renderFragment(f)
		total += utf8.RuneCountInString(entries[i])
	}
	if len(entries) > 1 {
		total += len(entries) - 1
	}

	keep := make([]bool, len(unique))
	for i := range keep {
		keep[i] = true
	}
	dropped := 0
	if budget > 0 && total > budget {
		for _, idx := range dropOrder(unique) {
			if total <= budget {
				break
			}
			keep[idx] = false
			dropped++
			total -= utf8.RuneCountInString(entries[idx])
			if len(unique)-dropped > 0 {
				total--
			}
		}
	}

	out := EvidenceContext{Dropped: dropped}
	var b strings.Builder
	for i, f := range unique {
		if !keep[i] {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(entries[i])
		out.Refs = append(out.Refs, f.ReferenceID)
		out.Fragments = append(out.Fragments, f)
	}
	out.Text = b.String()
	return out
}

func renderFragment(f review.EvidenceFragment) string {
	return "[" + f.Source.Tag() + ":" + f.ReferenceID + "] " + f.Text
}

// dropOrder lists fragment indices least relevant first. Ties drop the
// lower-priority source first, then the later reference id.
func dropOrder(frags []review.EvidenceFragment) []int {
	idx := make([]int, len(frags))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := frags[idx[i]], frags[idx[j]]
		if a.Relevance != b.Relevance {
			return a.Relevance < b.Relevance
		}
		if ra, rb := a.Source.Rank(), b.Source.Rank(); ra != rb {
			return ra > rb
		}
		return a.ReferenceID > b.ReferenceID
	})
	return idx
}
