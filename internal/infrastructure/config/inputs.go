package config

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/evaluation"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// LoadDocument reads a document descriptor. YAML and JSON files decode
// into review.Document directly. Markdown and text files become a
// document whose sections are the numbered heading paths, with the file
// name as id. A non-empty docType overrides the decoded type.
func LoadDocument(path string, docType review.DocumentType) (review.Document, error) {
	// #nosec G304 -- path is user-supplied on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return review.Document{}, fmt.Errorf("failed to read document: %w", err)
	}

	var doc review.Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return review.Document{}, fmt.Errorf("failed to parse document: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return review.Document{}, fmt.Errorf("failed to parse document: %w", err)
		}
	default:
		doc = documentFromMarkdown(path, data)
	}

	if docType != "" {
		doc.Type = docType
	}
	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if doc.Ref == "" {
		doc.Ref = path
	}
	return doc, nil
}

// documentFromMarkdown numbers ATX headings hierarchically, so
// "# Overview" then "## Scope" yields "1 Overview" and "1.1 Scope".
func documentFromMarkdown(path string, data []byte) review.Document {
	doc := review.Document{Ref: path}
	var counters []int
	inFence := false

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "```") {
			inFence = !inFence
			continue
		}
		if inFence || !strings.HasPrefix(line, "#") {
			continue
		}
		level := len(line) - len(strings.TrimLeft(line, "#"))
		title := strings.TrimSpace(line[level:])
		if title == "" || level > 6 {
			continue
		}
		if doc.Title == "" && level == 1 && len(counters) == 0 && doc.Sections == nil {
			doc.Title = title
		}

		for len(counters) < level {
			counters = append(counters, 0)
		}
		counters = counters[:level]
		counters[level-1]++

		parts := make([]string, 0, level)
		for _, n := range counters {
			if n == 0 {
				n = 1
			}
			parts = append(parts, strconv.Itoa(n))
		}
		doc.Sections = append(doc.Sections, strings.Join(parts, ".")+" "+title)
	}
	return doc
}

// DatasetCase is one labelled document in a dataset file. CheckItems may
// be inlined or referenced by id against the catalogue.
type DatasetCase struct {
	ID           string                       `yaml:"id" json:"id"`
	Document     review.Document              `yaml:"document" json:"document"`
	CheckItems   []review.CheckItem           `yaml:"check_items,omitempty" json:"check_items,omitempty"`
	CheckItemIDs []string                     `yaml:"check_item_ids,omitempty" json:"check_item_ids,omitempty"`
	Expected     []evaluation.ExpectedFinding `yaml:"expected" json:"expected"`
}

// Dataset is the content of an evaluation dataset file.
type Dataset struct {
	Cases []DatasetCase `yaml:"cases" json:"cases"`
}

// LoadDataset reads labelled cases and resolves their check items. Cases
// that name neither inline items nor ids get every catalogue item that
// applies to their document type.
func LoadDataset(path string, catalogue *review.Catalogue) ([]evaluation.Case, error) {
	// #nosec G304 -- path is user-supplied on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var ds Dataset
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &ds)
	} else {
		err = yaml.Unmarshal(data, &ds)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse dataset: %w", err)
	}
	return ds.Resolve(catalogue)
}

// Resolve turns dataset cases into evaluation cases.
func (ds *Dataset) Resolve(catalogue *review.Catalogue) ([]evaluation.Case, error) {
	if len(ds.Cases) == 0 {
		return nil, fmt.Errorf("dataset has no cases")
	}
	seen := map[string]bool{}
	out := make([]evaluation.Case, 0, len(ds.Cases))
	for i, c := range ds.Cases {
		if c.ID == "" {
			c.ID = fmt.Sprintf("case-%d", i+1)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("duplicate case id %q", c.ID)
		}
		seen[c.ID] = true
		if c.Document.ID == "" {
			c.Document.ID = c.ID
		}

		items := c.CheckItems
		if len(items) == 0 {
			if catalogue == nil {
				return nil, fmt.Errorf("case %s: no check items and no catalogue", c.ID)
			}
			items = catalogue.Filter(c.Document.Type, c.CheckItemIDs)
			for _, id := range c.CheckItemIDs {
				if _, ok := catalogue.Get(id); !ok {
					return nil, fmt.Errorf("case %s: unknown check item %q", c.ID, id)
				}
			}
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("case %s: no applicable check items", c.ID)
		}
		out = append(out, evaluation.Case{ID: c.ID, Document: c.Document, CheckItems: items, Expected: c.Expected})
	}
	return out, nil
}
