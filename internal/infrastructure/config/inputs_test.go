package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocument_YAML(t *testing.T) {
	path := writeFile(t, "doc.yaml", "id: d1\ntype: basic_design\nsections:\n  - 1 Overview\n  - 2 Architecture\n")
	doc, err := LoadDocument(path, "")
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	want := review.Document{ID: "d1", Type: review.DocBasicDesign, Sections: []string{"1 Overview", "2 Architecture"}, Ref: path}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Errorf("document (-want +got):\n%s", diff)
	}
}

func TestLoadDocument_Markdown(t *testing.T) {
	md := "# Payment design\n\nintro\n\n## Overview\n\n## Architecture\n\n### Network\n\n```\n# not a heading\n```\n\n## Security\n"
	path := writeFile(t, "payment.md", md)
	doc, err := LoadDocument(path, review.DocBasicDesign)
	if err != nil {
		t.Fatalf("LoadDocument: %v", err)
	}
	if doc.ID != "payment" || doc.Title != "Payment design" || doc.Type != review.DocBasicDesign {
		t.Errorf("document header = %+v", doc)
	}
	want := []string{"1 Payment design", "1.1 Overview", "1.2 Architecture", "1.2.1 Network", "1.3 Security"}
	if diff := cmp.Diff(want, doc.Sections); diff != "" {
		t.Errorf("sections (-want +got):\n%s", diff)
	}
}

func TestLoadDocument_Missing(t *testing.T) {
	if _, err := LoadDocument(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadDataset(t *testing.T) {
	catalogue, err := DefaultCatalogue()
	if err != nil {
		t.Fatal(err)
	}
	content := `cases:
  - id: c1
    document: {id: d1, type: basic_design, sections: ["1 Overview"]}
    check_item_ids: [BD-001, BD-009]
    expected:
      - {check_item_id: BD-009, location: "1 Overview", severity: minor}
  - document: {type: test_plan, sections: []}
    expected: []
  - id: c3
    document: {id: d3}
    check_items:
      - {id: X-1, name: Inline, type: style}
    expected: []
`
	cases, err := LoadDataset(writeFile(t, "ds.yaml", content), catalogue)
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(cases) != 3 {
		t.Fatalf("cases = %d, want 3", len(cases))
	}
	if len(cases[0].CheckItems) != 2 || cases[0].Expected[0].Severity != review.SeverityMinor {
		t.Errorf("case c1 = %+v", cases[0])
	}
	if cases[1].ID != "case-2" || cases[1].Document.ID != "case-2" || len(cases[1].CheckItems) != 10 {
		t.Errorf("case 2 = id %s doc %s items %d", cases[1].ID, cases[1].Document.ID, len(cases[1].CheckItems))
	}
	if len(cases[2].CheckItems) != 1 || cases[2].CheckItems[0].ID != "X-1" {
		t.Errorf("case c3 items = %+v", cases[2].CheckItems)
	}
}

func TestLoadDataset_Errors(t *testing.T) {
	catalogue, _ := DefaultCatalogue()
	tests := map[string]string{
		"empty":     "cases: []\n",
		"unknown":   "cases:\n  - id: a\n    document: {id: d}\n    check_item_ids: [NOPE]\n",
		"duplicate": "cases:\n  - {id: a, check_items: [{id: X, type: style}]}\n  - {id: a, check_items: [{id: X, type: style}]}\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadDataset(writeFile(t, "ds.yaml", content), catalogue); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
