package application

import (
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/review"
)

var allSources = []review.SourceKind{review.SourceVector, review.SourceGraph, review.SourceOntology}

// typeStrategy is the fixed mapping from declared check type to strategy.
var typeStrategy = map[review.CheckType]review.Strategy{
	review.TypeTerminology:  review.StrategyVector,
	review.TypeStyle:        review.StrategyVector,
	review.TypeCompliance:   review.StrategyGraph,
	review.TypeTraceability: review.StrategyGraph,
	review.TypeCoverage:     review.StrategyOntology,
	review.TypeComposite:    review.StrategyHybrid,
}

// strategySources lists the adapters each strategy calls.
var strategySources = map[review.Strategy][]review.SourceKind{
	review.StrategyVector:   {review.SourceVector},
	review.StrategyGraph:    {review.SourceGraph},
	review.StrategyOntology: {review.SourceOntology},
	review.StrategyHybrid:   allSources,
}

// ResolveStrategy returns the strategy for an item. ForceStrategy wins over
// the type-derived one, but the type must still be known.
func ResolveStrategy(item review.CheckItem) (review.Strategy, error) {
	derived, ok := typeStrategy[item.Type]
	if !ok {
		return "", review.NewConfigurationError(item.ID, "unknown check type %q", item.Type)
	}
	if item.ForceStrategy == "" {
		return derived, nil
	}
	if _, ok := strategySources[item.ForceStrategy]; !ok {
		return "", review.NewConfigurationError(item.ID, "unknown strategy %q", item.ForceStrategy)
	}
	return item.ForceStrategy, nil
}

// SelectAdapters maps a check item to the retrieval adapters to call.
// It performs no I/O and always returns a non-empty set on success.
func SelectAdapters(item review.CheckItem) (review.Strategy, []review.SourceKind, error) {
	strategy, err := ResolveStrategy(item)
	if err != nil {
		return "", nil, err
	}
	sources := strategySources[strategy]
	out := make([]review.SourceKind, len(sources))
	copy(out, sources)
	return strategy, out, nil
}

// ValidateCheckItems validates every item independently and returns one
// entry per input item: nil when valid, a configuration error otherwise.
// A repeated id is rejected on its second occurrence.
func ValidateCheckItems(items []review.CheckItem) []error {
	errs := make([]error, len(items))
	seen := map[string]bool{}
	for i, item := range items {
		if err := validateItem(item); err != nil {
			errs[i] = err
			continue
		}
		if seen[item.ID] {
			errs[i] = review.NewConfigurationError(item.ID, "duplicate check item id")
			continue
		}
		seen[item.ID] = true
	}
	return errs
}

func validateItem(item review.CheckItem) error {
	if err := item.Validate(); err != nil {
		return &review.Error{Kind: review.KindConfiguration, CheckItemID: item.ID, Op: "validate", Err: err}
	}
	_, err := ResolveStrategy(item)
	return err
}
