package evaluation

import (
	"math"
	"testing"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestCompute_ThreeOneOne(t *testing.T) {
	m := Compute(Counts{TP: 3, FP: 1, FN: 1})
	if !approx(m.Precision, 0.75) || !approx(m.Recall, 0.75) || !approx(m.F1, 0.75) {
		t.Fatalf("metrics = %+v, want 0.75/0.75/0.75", m)
	}
	if !approx(m.Accuracy, 0.6) {
		t.Errorf("Accuracy = %v, want 0.6", m.Accuracy)
	}

	cmp := Compare(m, Metrics{Precision: 0.9, Recall: 0.75, F1: 0.75}, 0)
	if !cmp.Regression {
		t.Fatal("expected regression against precision 0.9")
	}
	if len(cmp.Regressed) != 1 || cmp.Regressed[0] != "precision" {
		t.Errorf("Regressed = %v, want [precision]", cmp.Regressed)
	}
	if !approx(cmp.Delta.Precision, -0.15) {
		t.Errorf("Delta.Precision = %v, want -0.15", cmp.Delta.Precision)
	}
}

func TestCompute_ZeroDenominators(t *testing.T) {
	m := Compute(Counts{})
	if m != (Metrics{}) {
		t.Fatalf("Compute(zero) = %+v, want all zero", m)
	}
	m = Compute(Counts{FP: 2, FN: 2})
	if m.F1 != 0 {
		t.Errorf("F1 = %v, want 0 when P+R = 0", m.F1)
	}
}

func TestCompare(t *testing.T) {
	base := Metrics{Precision: 0.8, Recall: 0.8, F1: 0.8, Accuracy: 0.8}
	tests := []struct {
		name      string
		current   Metrics
		tolerance float64
		want      bool
	}{
		{"identical", base, 0, false},
		{"improved", Metrics{Precision: 0.9, Recall: 0.9, F1: 0.9}, 0, false},
		{"small drop within tolerance", Metrics{Precision: 0.78, Recall: 0.8, F1: 0.8}, 0.05, false},
		{"drop beyond tolerance", Metrics{Precision: 0.7, Recall: 0.8, F1: 0.8}, 0.05, true},
		{"accuracy drop ignored", Metrics{Precision: 0.8, Recall: 0.8, F1: 0.8, Accuracy: 0.1}, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compare(tt.current, base, tt.tolerance).Regression; got != tt.want {
				t.Errorf("Regression = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	items := []review.CheckItem{{ID: "A"}, {ID: "B"}, {ID: "C"}}
	actual := []review.Finding{
		{CheckItemID: "A", Location: "1.1"},
		{CheckItemID: "A", Location: "2.1"},
	}
	expected := []ExpectedFinding{
		{CheckItemID: "A", Location: "1.1"},
		{CheckItemID: "B", Location: "3"},
	}

	c, outcomes := Match(items, actual, expected)
	want := Counts{TP: 1, FP: 1, FN: 1, TN: 1}
	if c != want {
		t.Fatalf("Match = %+v, want %+v", c, want)
	}
	if len(outcomes) != 3 || outcomes[2].CheckItemID != "C" || outcomes[2].Counts.TN != 1 {
		t.Errorf("outcomes = %+v", outcomes)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	cases := []CaseResult{
		{Items: []ItemOutcome{
			{CheckItemID: "A", Counts: Counts{FP: 1, TN: 1}},
			{CheckItemID: "B", Counts: Counts{FN: 2}},
			{CheckItemID: "C", Counts: Counts{TP: 1}},
		}},
		{Items: []ItemOutcome{{CheckItemID: "A", Counts: Counts{TN: 2}}}},
	}
	got := AnalyzeErrors(cases)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].CheckItemID != "B" || got[0].FalseNegatives != 2 || got[0].FalseNegativeRate != 1 {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].CheckItemID != "A" || !approx(got[1].FalsePositiveRate, 0.25) {
		t.Errorf("second = %+v", got[1])
	}
}

func TestHashFindingsAndConsistency(t *testing.T) {
	items := []review.ItemExecution{{CheckItemID: "A", Status: review.ItemFail}}
	f1 := []review.Finding{{CheckItemID: "A", Location: "1", Severity: review.SeverityMajor}, {CheckItemID: "A", Location: "2"}}
	f2 := []review.Finding{f1[1], f1[0]}

	h1 := HashFindings("d", f1, items)
	h2 := HashFindings("d", f2, items)
	if h1 != h2 {
		t.Fatal("hash should not depend on finding order")
	}
	h3 := HashFindings("d", f1[:1], items)
	if got := ConsistencyRate([]string{h1, h2, h3}); !approx(got, 0.5) {
		t.Errorf("ConsistencyRate = %v, want 0.5", got)
	}
	if got := ConsistencyRate(nil); got != 0 {
		t.Errorf("ConsistencyRate(nil) = %v, want 0", got)
	}
}
