package evaluation

import (
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Counts is a confusion matrix.
type Counts struct {
	TP int `json:"true_positives" yaml:"true_positives"`
	FP int `json:"false_positives" yaml:"false_positives"`
	FN int `json:"false_negatives" yaml:"false_negatives"`
	TN int `json:"true_negatives" yaml:"true_negatives"`
}

// Add accumulates other into c.
func (c *Counts) Add(other Counts) {
	c.TP += other.TP
	c.FP += other.FP
	c.FN += other.FN
	c.TN += other.TN
}

// Total is the number of scored decisions.
func (c Counts) Total() int { return c.TP + c.FP + c.FN + c.TN }

// Metrics are derived from Counts. Every ratio is 0 when its denominator is.
type Metrics struct {
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
}

// Compute derives precision, recall, F1 and accuracy.
func Compute(c Counts) Metrics {
	m := Metrics{
		Precision: ratio(c.TP, c.TP+c.FP),
		Recall:    ratio(c.TP, c.TP+c.FN),
		Accuracy:  ratio(c.TP+c.TN, c.Total()),
	}
	if sum := m.Precision + m.Recall; sum > 0 {
		m.F1 = 2 * m.Precision * m.Recall / sum
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

type matchKey struct {
	item     string
	location string
}

// Match scores actual findings against expected ones for one document.
// A pair matches on (check item id, section path). An item with neither
// expected nor actual findings counts as one true negative.
func Match(items []review.CheckItem, actual []review.Finding, expected []ExpectedFinding) (Counts, []ItemOutcome) {
	want := make(map[matchKey]bool, len(expected))
	for _, e := range expected {
		want[matchKey{e.CheckItemID, e.Location}] = true
	}
	got := make(map[matchKey]bool, len(actual))
	for _, f := range actual {
		got[matchKey{f.CheckItemID, f.Location}] = true
	}

	perItem := make(map[string]*ItemOutcome, len(items))
	outcome := func(id string) *ItemOutcome {
		o, ok := perItem[id]
		if !ok {
			o = &ItemOutcome{CheckItemID: id}
			perItem[id] = o
		}
		return o
	}

	var c Counts
	for k := range got {
		if want[k] {
			c.TP++
			outcome(k.item).Counts.TP++
		} else {
			c.FP++
			outcome(k.item).Counts.FP++
		}
	}
	for k := range want {
		if !got[k] {
			c.FN++
			outcome(k.item).Counts.FN++
		}
	}

	outcomes := make([]ItemOutcome, 0, len(items))
	for _, item := range items {
		o := outcome(item.ID)
		if o.Counts.Total() == 0 {
			c.TN++
			o.Counts.TN++
		}
		outcomes = append(outcomes, *o)
	}
	return c, outcomes
}

// ItemOutcome is the confusion matrix of a single check item in one case.
type ItemOutcome struct {
	CheckItemID string `json:"check_item_id" yaml:"check_item_id"`
	Counts      Counts `json:"counts" yaml:"counts"`
}

// Delta holds signed metric differences, current minus baseline.
type Delta struct {
	Precision float64 `json:"precision" yaml:"precision"`
	Recall    float64 `json:"recall" yaml:"recall"`
	F1        float64 `json:"f1" yaml:"f1"`
	Accuracy  float64 `json:"accuracy" yaml:"accuracy"`
}

// Comparison is the outcome of checking a result against a baseline.
type Comparison struct {
	BaselineID string   `json:"baseline_id,omitempty" yaml:"baseline_id,omitempty"`
	Baseline   Metrics  `json:"baseline" yaml:"baseline"`
	Delta      Delta    `json:"delta" yaml:"delta"`
	Tolerance  float64  `json:"tolerance" yaml:"tolerance"`
	Regression bool     `json:"regression" yaml:"regression"`
	Regressed  []string `json:"regressed,omitempty" yaml:"regressed,omitempty"`
}

// Compare flags a regression when precision, recall or F1 dropped by more
// than tolerance. Accuracy is reported but never flags.
func Compare(current, baseline Metrics, tolerance float64) Comparison {
	if tolerance < 0 {
		tolerance = 0
	}
	d := Delta{
		Precision: current.Precision - baseline.Precision,
		Recall:    current.Recall - baseline.Recall,
		F1:        current.F1 - baseline.F1,
		Accuracy:  current.Accuracy - baseline.Accuracy,
	}
	cmp := Comparison{Baseline: baseline, Delta: d, Tolerance: tolerance}
	check := func(name string, delta float64) {
		if -delta > tolerance+epsilon {
			cmp.Regression = true
			cmp.Regressed = append(cmp.Regressed, name)
		}
	}
	check("precision", d.Precision)
	check("recall", d.Recall)
	check("f1", d.F1)
	return cmp
}

// epsilon absorbs float noise so identical metrics never flag.
const epsilon = 1e-9
