package review

import "fmt"

// Catalogue is an ordered set of check items with unique ids.
type Catalogue struct {
	Items []CheckItem `json:"items" yaml:"items"`
}

// Get returns the item with the given id.
func (c *Catalogue) Get(id string) (CheckItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return CheckItem{}, false
}

// Filter returns the items for a document type, optionally narrowed to ids.
// An empty docType matches every item. Catalogue order is preserved.
func (c *Catalogue) Filter(docType DocumentType, ids []string) []CheckItem {
	var want map[string]bool
	if len(ids) > 0 {
		want = make(map[string]bool, len(ids))
		for _, id := range ids {
			want[id] = true
		}
	}

	var out []CheckItem
	for _, item := range c.Items {
		if docType != "" && item.DocumentType != "" && item.DocumentType != docType {
			continue
		}
		if want != nil && !want[item.ID] {
			continue
		}
		out = append(out, item)
	}
	return out
}

// Validate reports duplicate ids. Per-item checks happen at run time so a
// single bad item does not reject the whole catalogue.
func (c *Catalogue) Validate() error {
	seen := make(map[string]bool, len(c.Items))
	for _, item := range c.Items {
		if seen[item.ID] {
			return fmt.Errorf("duplicate check item id %q", item.ID)
		}
		seen[item.ID] = true
	}
	return nil
}
