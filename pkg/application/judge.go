package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/ai"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Verdict is the judgment's answer for one check item.
type Verdict string

const (
	VerdictPass    Verdict = "pass"
	VerdictFail    Verdict = "fail"
	VerdictWarning Verdict = "warning"
)

// JudgeRequest is the input of one judgment call.
type JudgeRequest struct {
	Item      review.CheckItem
	Document  review.Document
	Evidence  EvidenceContext
	MaxTokens int
}

// JudgedFinding is a finding as reported by the judgment, before the engine
// assigns ids and ownership.
type JudgedFinding struct {
	Severity           string   `json:"severity"`
	Title              string   `json:"title"`
	Message            string   `json:"message"`
	Location           string   `json:"location"`
	Confidence         *float64 `json:"confidence,omitempty"`
	Evidence           string   `json:"evidence,omitempty"`
	GuidelineReference string   `json:"guideline_reference,omitempty"`
}

// JudgedSuggestion is the optional remediation.
type JudgedSuggestion struct {
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Example    string  `json:"example,omitempty"`
	Priority   int     `json:"priority,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Judgment is the structured answer of a judgment call.
type Judgment struct {
	Verdict    Verdict           `json:"verdict"`
	Rationale  string            `json:"rationale"`
	Findings   []JudgedFinding   `json:"findings"`
	Suggestion *JudgedSuggestion `json:"suggestion,omitempty"`
}

// Judge evaluates evidence against a check item's criteria.
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) (*Judgment, error)
}

const judgmentSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["verdict"],
  "properties": {
    "verdict": { "type": "string", "enum": ["pass", "fail", "warning"] },
    "rationale": { "type": "string" },
    "findings": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["message"],
        "properties": {
          "severity": { "type": "string" },
          "title": { "type": "string" },
          "message": { "type": "string" },
          "location": { "type": "string" },
          "confidence": { "type": "number" },
          "evidence": { "type": "string" },
          "guideline_reference": { "type": "string" }
        }
      }
    },
    "suggestion": {
      "type": ["object", "null"],
      "properties": {
        "title": { "type": "string" },
        "content": { "type": "string" },
        "example": { "type": "string" },
        "priority": { "type": "integer" },
        "confidence": { "type": "number" }
      }
    }
  }
}`

var judgmentSchemaLoader = gojsonschema.NewStringLoader(judgmentSchemaJSON)

const judgeSystemPrompt = `You are a meticulous reviewer of government system design documents.
You evaluate one check item at a time against the retrieved guideline evidence.
Evidence lines are tagged [o:...] for ontology, [g:...] for knowledge graph and [v:...] for similarity search.
Return ONLY a JSON object with no surrounding text.`

// LLMJudge asks a language model for a judgment.
type LLMJudge struct {
	provider    ai.Provider
	temperature float32
}

func NewLLMJudge(provider ai.Provider) *LLMJudge {
	return &LLMJudge{provider: provider, temperature: 0.1}
}

func (j *LLMJudge) Judge(ctx context.Context, req JudgeRequest) (*Judgment, error) {
	resp, err := j.provider.Complete(ctx, ai.CompletionRequest{
		System:      judgeSystemPrompt,
		Prompt:      buildJudgePrompt(req),
		Temperature: j.temperature,
		MaxTokens:   req.MaxTokens,
		JSON:        true,
	})
	if err != nil {
		kind := review.KindJudgmentTimeout
		if errors.Is(err, ai.ErrEmptyCompletion) {
			kind = review.KindJudgmentInvalidResponse
		}
		return nil, &review.Error{Kind: kind, CheckItemID: req.Item.ID, Op: "judge", Err: err}
	}

	judgment, err := ParseJudgment(resp.Text)
	if err != nil {
		return nil, &review.Error{Kind: review.KindJudgmentInvalidResponse, CheckItemID: req.Item.ID, Op: "judge", Err: err}
	}
	return judgment, nil
}

// ParseJudgment extracts and validates the JSON judgment from model text.
func ParseJudgment(text string) (*Judgment, error) {
	clean := extractJSONPayload(text)
	if clean == "" {
		return nil, errors.New("empty judgment")
	}

	result, err := gojsonschema.Validate(judgmentSchemaLoader, gojsonschema.NewStringLoader(clean))
	if err != nil {
		return nil, fmt.Errorf("judgment is not valid JSON: %w", err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, fmt.Errorf("judgment violates schema: %s", strings.Join(issues, "; "))
	}

	var j Judgment
	if err := json.Unmarshal([]byte(clean), &j); err != nil {
		return nil, fmt.Errorf("failed to decode judgment: %w", err)
	}
	return &j, nil
}

func buildJudgePrompt(req JudgeRequest) string {
	item := req.Item
	var b strings.Builder
	fmt.Fprintf(&b, "Check item %s: %s\n", item.ID, item.Name)
	if item.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", item.Description)
	}
	fmt.Fprintf(&b, "Type: %s. Priority: %s.\n", item.Type, item.Priority)
	if item.GuidelineReference != "" {
		fmt.Fprintf(&b, "Guideline reference: %s\n", item.GuidelineReference)
	}
	if item.Criteria.Prompt != "" {
		fmt.Fprintf(&b, "Criteria: %s\n", item.Criteria.Prompt)
	}
	if item.Criteria.Template != "" {
		fmt.Fprintf(&b, "Template: %s\n", item.Criteria.Template)
	}
	if t := item.Criteria.Threshold; t != nil {
		fmt.Fprintf(&b, "Pass threshold: %.2f\n", *t)
	}

	fmt.Fprintf(&b, "\nDocument %s", req.Document.ID)
	if req.Document.Title != "" {
		fmt.Fprintf(&b, " (%s)", req.Document.Title)
	}
	fmt.Fprintf(&b, ", type %s. Sections:\n", req.Document.Type)
	for _, s := range req.Document.Sections {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	b.WriteString("\nEvidence:\n")
	if req.Evidence.Text == "" {
		b.WriteString("(no evidence retrieved)\n")
	} else {
		b.WriteString(req.Evidence.Text)
		b.WriteByte('\n')
	}

	b.WriteString(`
Respond with:
{"verdict":"pass|fail|warning","rationale":"...","findings":[{"severity":"critical|major|minor|info","title":"...","message":"...","location":"<section path>","confidence":0.0,"evidence":"...","guideline_reference":"..."}],"suggestion":{"title":"...","content":"...","example":"...","priority":1,"confidence":0.0}}
Use an empty findings array when the verdict is pass. Locations must be one of the section paths above.`)
	return b.String()
}

// extractJSONPayload strips code fences and surrounding prose.
func extractJSONPayload(text string) string {
	clean := strings.TrimSpace(text)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end <= start {
		return clean
	}
	return clean[start : end+1]
}
