package wiring

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/felixgeelhaar/smartreviewer/internal/infrastructure/config"
	infraretrieval "github.com/felixgeelhaar/smartreviewer/internal/infrastructure/retrieval"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/retrieval"
	infraplugin "github.com/felixgeelhaar/smartreviewer/pkg/plugin"
)

// Server names the MCP backend looks for before falling back to order.
const (
	MCPServerRAG       = "rag"
	MCPServerKnowledge = "knowledge"
)

// BuildBackend connects the configured retrieval backend and wraps it
// with the redis cache when one is configured. Returned closers release
// connections and plugin processes.
func BuildBackend(ctx context.Context, root string, cfg *config.ReviewConfig, logger *slog.Logger) (retrieval.Backend, []func() error, error) {
	if cfg == nil {
		cfg = &config.ReviewConfig{}
	}
	var closers []func() error
	fail := func(err error) (retrieval.Backend, []func() error, error) {
		closeAll(closers)
		return nil, nil, err
	}

	var backend retrieval.Backend
	switch cfg.Retrieval.Backend {
	case "", config.BackendFixture:
		fixture := &infraretrieval.Fixture{}
		if p := cfg.Retrieval.FixturePath; p != "" {
			f, err := infraretrieval.LoadFixture(workspacePath(root, p))
			if err != nil {
				return fail(err)
			}
			fixture = f
		}
		backend = infraretrieval.NewFixtureBackend(fixture)

	case config.BackendMCP:
		rag, knowledge, err := pickMCPServers(cfg.EnabledMCPServers())
		if err != nil {
			return fail(err)
		}
		ragClient, err := infraretrieval.DialMCP(ctx, rag)
		if err != nil {
			return fail(fmt.Errorf("connect mcp server %s: %w", rag.Name, err))
		}
		closers = append(closers, ragClient.Close)
		var kgCaller infraretrieval.ToolCaller = ragClient
		if knowledge.Name != rag.Name {
			kgClient, err := infraretrieval.DialMCP(ctx, knowledge)
			if err != nil {
				return fail(fmt.Errorf("connect mcp server %s: %w", knowledge.Name, err))
			}
			closers = append(closers, kgClient.Close)
			kgCaller = kgClient
		}
		backend = infraretrieval.NewMCPBackend(ragClient, kgCaller)

	case config.BackendPlugin:
		loader := infraplugin.NewLoader()
		r, err := loader.Load(workspacePath(root, cfg.Retrieval.PluginPath), cfg.Retrieval.PluginConfig)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { loader.Cleanup(); return nil })
		backend = infraplugin.AsBackend(r)

	case config.BackendGRPC:
		conn, err := infraplugin.DialGRPC(cfg.Retrieval.GRPCAddr)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, conn.Close)
		backend = infraplugin.NewGRPCClient(conn)

	default:
		return fail(fmt.Errorf("unknown retrieval backend %q", cfg.Retrieval.Backend))
	}

	if opts, ok := cfg.RedisOptions(); ok {
		rdb := infraretrieval.OpenRedis(opts)
		closers = append(closers, rdb.Close)
		backend = infraretrieval.NewCachedBackend(backend, rdb, opts.TTL, logger)
		logger.Debug("retrieval cache enabled", "addr", opts.Address, "ttl", opts.TTL)
	}
	return backend, closers, nil
}

// pickMCPServers prefers servers named rag and knowledge, then falls back
// to the first two enabled servers. One server may serve both roles.
func pickMCPServers(servers []infraretrieval.MCPServer) (rag, knowledge infraretrieval.MCPServer, err error) {
	if len(servers) == 0 {
		return rag, knowledge, fmt.Errorf("retrieval backend mcp requires at least one enabled mcp server")
	}
	byName := map[string]infraretrieval.MCPServer{}
	for _, s := range servers {
		byName[s.Name] = s
	}

	var ok bool
	if rag, ok = byName[MCPServerRAG]; !ok {
		rag = servers[0]
	}
	if knowledge, ok = byName[MCPServerKnowledge]; !ok {
		knowledge = rag
		for _, s := range servers {
			if s.Name != rag.Name {
				knowledge = s
				break
			}
		}
	}
	return rag, knowledge, nil
}

func workspacePath(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

func closeAll(closers []func() error) error {
	var first error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
