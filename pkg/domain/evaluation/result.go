// Package evaluation holds the regression-evaluation model: labelled cases,
// confusion-matrix metrics and baseline comparison.
package evaluation

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// ExpectedFinding is ground truth for one case.
type ExpectedFinding struct {
	CheckItemID string          `json:"check_item_id" yaml:"check_item_id"`
	Location    string          `json:"location" yaml:"location"`
	Severity    review.Severity `json:"severity,omitempty" yaml:"severity,omitempty"`
}

// Case is a labelled document.
type Case struct {
	ID         string             `json:"id" yaml:"id"`
	Document   review.Document    `json:"document" yaml:"document"`
	CheckItems []review.CheckItem `json:"check_items" yaml:"check_items"`
	Expected   []ExpectedFinding  `json:"expected" yaml:"expected"`
}

// CaseResult is the per-document outcome of one evaluation run.
type CaseResult struct {
	CaseID         string        `json:"case_id" yaml:"case_id"`
	DocumentID     string        `json:"document_id" yaml:"document_id"`
	ReviewID       string        `json:"review_id" yaml:"review_id"`
	ReviewStatus   review.Status `json:"review_status" yaml:"review_status"`
	Counts         Counts        `json:"counts" yaml:"counts"`
	Accuracy       float64       `json:"accuracy" yaml:"accuracy"`
	ErroredItems   []string      `json:"errored_items,omitempty" yaml:"errored_items,omitempty"`
	ProcessingTime time.Duration `json:"processing_time_ns" yaml:"processing_time_ns"`
	Items          []ItemOutcome `json:"items,omitempty" yaml:"items,omitempty"`
	Error          string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// ErrorAnalysis aggregates mistakes per check item.
type ErrorAnalysis struct {
	CheckItemID       string  `json:"check_item_id" yaml:"check_item_id"`
	FalsePositives    int     `json:"false_positives" yaml:"false_positives"`
	FalseNegatives    int     `json:"false_negatives" yaml:"false_negatives"`
	FalsePositiveRate float64 `json:"false_positive_rate" yaml:"false_positive_rate"`
	FalseNegativeRate float64 `json:"false_negative_rate" yaml:"false_negative_rate"`
}

// Repeat is one full pass over the case set when repeats are requested.
type Repeat struct {
	Index       int     `json:"index" yaml:"index"`
	Metrics     Metrics `json:"metrics" yaml:"metrics"`
	ResultsHash string  `json:"results_hash" yaml:"results_hash"`
}

// Result is the outcome of an evaluation.
type Result struct {
	ID                string          `json:"id" yaml:"id"`
	Counts            Counts          `json:"counts" yaml:"counts"`
	Metrics           Metrics         `json:"metrics" yaml:"metrics"`
	Cases             []CaseResult    `json:"cases" yaml:"cases"`
	ErrorAnalysis     []ErrorAnalysis `json:"error_analysis,omitempty" yaml:"error_analysis,omitempty"`
	Repeats           []Repeat        `json:"repeats,omitempty" yaml:"repeats,omitempty"`
	ConsistencyRate   float64         `json:"consistency_rate" yaml:"consistency_rate"`
	AvgProcessingTime time.Duration   `json:"avg_processing_time_ns" yaml:"avg_processing_time_ns"`
	Baseline          *Comparison     `json:"baseline,omitempty" yaml:"baseline,omitempty"`
	CreatedAt         time.Time       `json:"created_at" yaml:"created_at"`
}

// AnalyzeErrors aggregates per-item outcomes across cases, worst first.
func AnalyzeErrors(cases []CaseResult) []ErrorAnalysis {
	totals := map[string]*Counts{}
	for _, c := range cases {
		for _, o := range c.Items {
			t, ok := totals[o.CheckItemID]
			if !ok {
				t = &Counts{}
				totals[o.CheckItemID] = t
			}
			t.Add(o.Counts)
		}
	}

	var out []ErrorAnalysis
	for id, c := range totals {
		if c.FP == 0 && c.FN == 0 {
			continue
		}
		out = append(out, ErrorAnalysis{
			CheckItemID:       id,
			FalsePositives:    c.FP,
			FalseNegatives:    c.FN,
			FalsePositiveRate: ratio(c.FP, c.FP+c.TN),
			FalseNegativeRate: ratio(c.FN, c.FN+c.TP),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		ei := out[i].FalsePositives + out[i].FalseNegatives
		ej := out[j].FalsePositives + out[j].FalseNegatives
		if ei != ej {
			return ei > ej
		}
		return out[i].CheckItemID < out[j].CheckItemID
	})
	return out
}

// HashFindings fingerprints the findings of a run so repeated runs can be
// compared for consistency. Order of input does not matter.
func HashFindings(docID string, findings []review.Finding, items []review.ItemExecution) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		lines = append(lines, docID+"|"+it.CheckItemID+"|"+string(it.Status))
	}
	for _, f := range findings {
		lines = append(lines, docID+"|"+f.CheckItemID+"|"+f.Location+"|"+string(f.Severity))
	}
	sort.Strings(lines)
	sum := md5.Sum([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// CombineHashes fingerprints a whole pass from its per-case hashes, in order.
func CombineHashes(hashes []string) string {
	if len(hashes) == 1 {
		return hashes[0]
	}
	sum := md5.Sum([]byte(strings.Join(hashes, ",")))
	return hex.EncodeToString(sum[:])
}

// ConsistencyRate is 1 / number of distinct hashes, or 0 with no runs.
func ConsistencyRate(hashes []string) float64 {
	unique := map[string]bool{}
	for _, h := range hashes {
		unique[h] = true
	}
	if len(unique) == 0 {
		return 0
	}
	return 1 / float64(len(unique))
}
