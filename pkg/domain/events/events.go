// Package events defines the lifecycle events emitted by reviews and
// evaluations. Events are hash chained when persisted to the run history.
package events

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// Event types.
const (
	ReviewStarted        = "review.started"
	ReviewProgressed     = "review.progressed"
	ReviewCompleted      = "review.completed"
	ReviewPartialFailure = "review.partially_failed"
	EvaluationCompleted  = "evaluation.completed"
	EvaluationRegressed  = "evaluation.regressed"
	ResultPublished      = "result.published"
)

// Subject kinds.
const (
	SubjectReview     = "review"
	SubjectEvaluation = "evaluation"
	SubjectDocument   = "document"
)

// Event is something that happened to a review or evaluation.
type Event struct {
	ID          string         `json:"id"`
	Type        string         `json:"type"`
	SubjectID   string         `json:"subject_id"`
	SubjectType string         `json:"subject_type"`
	Timestamp   time.Time      `json:"timestamp"`
	Actor       string         `json:"actor,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	PrevHash    string         `json:"prev_hash,omitempty"`
	Hash        string         `json:"hash,omitempty"`
}

// CalculateHash generates a deterministic SHA256 hash of the event.
func (e *Event) CalculateHash() string {
	h := sha256.New()
	h.Write([]byte(e.PrevHash))
	h.Write([]byte(e.ID))
	h.Write([]byte(e.Timestamp.Format(time.RFC3339Nano)))
	h.Write([]byte(e.Type))
	h.Write([]byte(e.SubjectID))
	h.Write([]byte(e.Actor))
	h.Write([]byte(canonicalJSON(e.Metadata)))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChain reports the index of the first event whose hash or link is
// broken, or -1 when the chain is intact.
func VerifyChain(chain []*Event) int {
	prev := ""
	for i, e := range chain {
		if e.PrevHash != prev || e.CalculateHash() != e.Hash {
			return i
		}
		prev = e.Hash
	}
	return -1
}

func canonicalJSON(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([]byte, 0, 256)
	ordered = append(ordered, '{')
	for i, k := range keys {
		if i > 0 {
			ordered = append(ordered, ',')
		}
		keyJSON, _ := json.Marshal(k)
		valJSON, _ := json.Marshal(m[k])
		ordered = append(ordered, keyJSON...)
		ordered = append(ordered, ':')
		ordered = append(ordered, valJSON...)
	}
	ordered = append(ordered, '}')
	return string(ordered)
}
