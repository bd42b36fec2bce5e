package review

// Document is the subject of a review. Ref is opaque to the engine and is
// handed to retrieval adapters unchanged.
type Document struct {
	ID       string       `json:"id" yaml:"id"`
	Type     DocumentType `json:"type" yaml:"type"`
	Title    string       `json:"title,omitempty" yaml:"title,omitempty"`
	Sections []string     `json:"sections" yaml:"sections"`
	Ref      string       `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// HasSection reports whether path is one of the document's section paths.
func (d Document) HasSection(path string) bool {
	for _, s := range d.Sections {
		if s == path {
			return true
		}
	}
	return false
}

// SourceKind identifies which retrieval backend produced a fragment.
type SourceKind string

const (
	SourceVector   SourceKind = "vector"
	SourceGraph    SourceKind = "graph"
	SourceOntology SourceKind = "ontology"
)

// Rank orders sources by specificity: ontology first, vector last.
func (s SourceKind) Rank() int {
	switch s {
	case SourceOntology:
		return 0
	case SourceGraph:
		return 1
	case SourceVector:
		return 2
	default:
		return 3
	}
}

// Tag is the short label written in front of a fragment in synthesized text.
func (s SourceKind) Tag() string {
	if s == "" {
		return "?"
	}
	return string(s[0])
}

// EvidenceFragment is one retrieved snippet.
type EvidenceFragment struct {
	Source      SourceKind `json:"source" yaml:"source"`
	ReferenceID string     `json:"reference_id" yaml:"reference_id"`
	Relevance   float64    `json:"relevance" yaml:"relevance"`
	Text        string     `json:"text" yaml:"text"`
}
