// Command smartreviewer-plugin-fixture serves canned evidence from a YAML
// fixture as a retrieval plugin. The host passes the fixture path as the
// "fixture" config key.
package main

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/retrieval"
	infraPlugin "github.com/felixgeelhaar/smartreviewer/pkg/plugin"
)

// fixtureRetriever loads its fixture on Init.
func fixtureRetriever() *infraPlugin.Retriever {
	r := &infraPlugin.Retriever{
		Backend: retrieval.NewFixtureBackend(nil),
		Timeout: 30 * time.Second,
	}
	r.InitFunc = func(config map[string]string) error {
		path := config["fixture"]
		if path == "" {
			return nil
		}
		f, err := retrieval.LoadFixture(path)
		if err != nil {
			return fmt.Errorf("fixture plugin: %w", err)
		}
		r.Backend = retrieval.NewFixtureBackend(f)
		return nil
	}
	return r
}

func main() {
	infraPlugin.Serve(fixtureRetriever())
}
