package sdk

import "github.com/felixgeelhaar/smartreviewer/pkg/domain/review"

// SchemaURI is the resource describing the server's tool schema.
const SchemaURI = "smartreviewer://schema"

// SchemaInfo is the content of the schema resource.
type SchemaInfo struct {
	SchemaVersion string            `json:"schema_version"`
	ServerVersion string            `json:"server_version"`
	Tools         []string          `json:"tools"`
	Deprecated    []DeprecatedField `json:"deprecated"`
}

type DeprecatedField struct {
	Tool      string `json:"tool"`
	Field     string `json:"field"`
	Since     string `json:"since"`
	RemovedIn string `json:"removed_in"`
	Migration string `json:"migration"`
}

// ReviewRequest selects the document and check items of a review. Set
// either DocumentPath (resolved on the server) or Document.
type ReviewRequest struct {
	DocumentPath string
	Document     *review.Document
	DocumentType review.DocumentType
	CheckItems   []string
	Parallelism  int
	TimeoutSec   int
}

func (r ReviewRequest) args() map[string]any {
	args := map[string]any{}
	if r.DocumentPath != "" {
		args["document_path"] = r.DocumentPath
	}
	if r.Document != nil {
		args["document"] = r.Document
	}
	if r.DocumentType != "" {
		args["document_type"] = string(r.DocumentType)
	}
	if len(r.CheckItems) > 0 {
		args["check_items"] = r.CheckItems
	}
	if r.Parallelism > 0 {
		args["parallelism"] = r.Parallelism
	}
	if r.TimeoutSec > 0 {
		args["timeout_sec"] = r.TimeoutSec
	}
	return args
}

// EvaluationRequest runs a dataset file stored on the server side.
type EvaluationRequest struct {
	DatasetPath       string
	BaselineID        string
	UseLatestBaseline bool
	SaveBaseline      bool
	RepeatCount       int
	Tolerance         *float64
}

func (r EvaluationRequest) args() map[string]any {
	args := map[string]any{"dataset_path": r.DatasetPath}
	if r.BaselineID != "" {
		args["baseline_id"] = r.BaselineID
	}
	if r.UseLatestBaseline {
		args["use_latest_baseline"] = true
	}
	if r.SaveBaseline {
		args["save_baseline"] = true
	}
	if r.RepeatCount > 0 {
		args["repeat_count"] = r.RepeatCount
	}
	if r.Tolerance != nil {
		args["tolerance"] = *r.Tolerance
	}
	return args
}
