package application

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

func frag(src review.SourceKind, ref string, rel float64, text string) review.EvidenceFragment {
	return review.EvidenceFragment{Source: src, ReferenceID: ref, Relevance: rel, Text: text}
}

func TestSynthesize_BudgetDropsLeastRelevant(t *testing.T) {
	text := strings.Repeat("x", 40)
	frags := []review.EvidenceFragment{
		frag(review.SourceVector, "c", 0.1, text),
		frag(review.SourceVector, "a", 0.9, text),
		frag(review.SourceVector, "b", 0.5, text),
	}

	got := Synthesize(frags, 100)
	if n := utf8.RuneCountInString(got.Text); n > 100 {
		t.Fatalf("text length %d exceeds budget 100", n)
	}
	if diff := cmp.Diff([]string{"a", "b"}, got.Refs); diff != "" {
		t.Errorf("retained refs mismatch (-want +got):\n%s", diff)
	}
	if got.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", got.Dropped)
	}
}

func TestSynthesize_PriorityOrderAndTags(t *testing.T) {
	frags := []review.EvidenceFragment{
		frag(review.SourceVector, "v1", 0.99, "vector"),
		frag(review.SourceGraph, "g1", 0.4, "graph low"),
		frag(review.SourceGraph, "g2", 0.8, "graph high"),
		frag(review.SourceOntology, "o1", 0.2, "ontology"),
	}
	got := Synthesize(frags, 0)

	if diff := cmp.Diff([]string{"o1", "g2", "g1", "v1"}, got.Refs); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
	want := "[o:o1] ontology\n[g:g2] graph high\n[g:g1] graph low\n[v:v1] vector"
	if got.Text != want {
		t.Errorf("Text = %q, want %q", got.Text, want)
	}
}

func TestSynthesize_DedupKeepsFirst(t *testing.T) {
	frags := []review.EvidenceFragment{
		frag(review.SourceVector, "dup", 0.9, "from vector"),
		frag(review.SourceGraph, "dup", 0.3, "from graph"),
		frag(review.SourceVector, "other", 0.5, "other"),
	}
	got := Synthesize(frags, 0)
	if len(got.Fragments) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got.Fragments))
	}
	if got.Fragments[0].Source != review.SourceGraph || got.Fragments[0].ReferenceID != "dup" {
		t.Errorf("first fragment = %+v, want graph dup", got.Fragments[0])
	}
}

func TestSynthesize_TieBreakBySourcePriority(t *testing.T) {
	text := strings.Repeat("y", 30)
	frags := []review.EvidenceFragment{
		frag(review.SourceVector, "v", 0.5, text),
		frag(review.SourceOntology, "o", 0.5, text),
	}
	got := Synthesize(frags, 40)
	if diff := cmp.Diff([]string{"o"}, got.Refs); diff != "" {
		t.Errorf("equal relevance should keep higher-priority source (-want +got):\n%s", diff)
	}
}

func TestSynthesize_NeverCutsFragment(t *testing.T) {
	frags := []review.EvidenceFragment{frag(review.SourceGraph, "big", 1, strings.Repeat("z", 200))}
	got := Synthesize(frags, 50)
	if got.Text != "" || len(got.Refs) != 0 {
		t.Fatalf("oversized fragment should be dropped whole, got %q", got.Text)
	}
}

func TestSynthesize_Deterministic(t *testing.T) {
	frags := []review.EvidenceFragment{
		frag(review.SourceVector, "b", 0.5, "b"),
		frag(review.SourceVector, "a", 0.5, "a"),
		frag(review.SourceGraph, "g", 0.5, "g"),
	}
	first := Synthesize(frags, 0)
	for i := 0; i < 5; i++ {
		if got := Synthesize(frags, 0); got.Text != first.Text {
			t.Fatalf("run %d text = %q, want %q", i, got.Text, first.Text)
		}
	}
	if first.Refs[1] != "a" {
		t.Errorf("equal relevance should sort by reference id, got %v", first.Refs)
	}
}
