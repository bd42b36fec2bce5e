package contract

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	infraPlugin "github.com/felixgeelhaar/smartreviewer/pkg/plugin"
)

// ContractSuite runs all contract assertions against a backend.
type ContractSuite struct {
	loader *infraPlugin.Loader
}

func NewContractSuite() *ContractSuite {
	return &ContractSuite{
		loader: infraPlugin.NewLoader(),
	}
}

// SuiteResult aggregates results from running the full contract suite.
type SuiteResult struct {
	Results []Result
	Passed  int
	Failed  int
}

// RunWithBackend runs the suite against an already connected backend.
func (s *ContractSuite) RunWithBackend(ctx context.Context, b retrieval.Backend) *SuiteResult {
	assertions := []func(context.Context, retrieval.Backend) Result{
		AssertVectorSearch,
		AssertVectorRejectsEmptyQuery,
		AssertGraphLimit,
		AssertGraphRejectsEmptyEntity,
		AssertOntologyCoverage,
		AssertCancelledContext,
	}

	sr := &SuiteResult{}
	for _, assert := range assertions {
		result := assert(ctx, b)
		sr.Results = append(sr.Results, result)
		if result.Passed {
			sr.Passed++
		} else {
			sr.Failed++
		}
	}
	return sr
}

// RunBinary loads a plugin binary and runs the full contract suite.
func (s *ContractSuite) RunBinary(ctx context.Context, path string, config map[string]string) (*SuiteResult, error) {
	defer s.loader.Cleanup()

	r, err := s.loader.Load(path, config)
	if err != nil {
		return nil, fmt.Errorf("load plugin: %w", err)
	}
	return s.RunWithBackend(ctx, infraPlugin.AsBackend(r)), nil
}
