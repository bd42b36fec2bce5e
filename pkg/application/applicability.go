package application

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

// Applicability evaluates check item `when` expressions. Expressions see a
// single variable, document, with keys id, type, title and sections.
type Applicability struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

func NewApplicability() (*Applicability, error) {
	env, err := cel.NewEnv(
		cel.Variable("document", cel.MapType(cel.StringType, cel.AnyType)),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL environment: %w", err)
	}
	return &Applicability{env: env, programs: map[string]cel.Program{}}, nil
}

// Compile parses and caches an expression.
func (a *Applicability) Compile(expr string) (cel.Program, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.programs[expr]; ok {
		return p, nil
	}

	ast, issues := a.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("error compiling CEL expression %q: %w", expr, issues.Err())
	}
	p, err := a.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("error creating CEL program: %w", err)
	}
	a.programs[expr] = p
	return p, nil
}

// Applies reports whether item applies to doc. An empty expression applies.
func (a *Applicability) Applies(item review.CheckItem, doc review.Document) (bool, error) {
	if item.When == "" {
		return true, nil
	}
	p, err := a.Compile(item.When)
	if err != nil {
		return false, err
	}

	sections := make([]any, len(doc.Sections))
	for i, s := range doc.Sections {
		sections[i] = s
	}
	out, _, err := p.Eval(map[string]any{
		"document": map[string]any{
			"id":       doc.ID,
			"type":     string(doc.Type),
			"title":    doc.Title,
			"sections": sections,
		},
	})
	if err != nil {
		return false, fmt.Errorf("error evaluating %q: %w", item.When, err)
	}
	nv, err := out.ConvertToNative(reflect.TypeOf(true))
	if err != nil {
		return false, fmt.Errorf("expression %q must return a bool: %w", item.When, err)
	}
	return nv.(bool), nil
}
