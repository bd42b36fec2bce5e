package plugin

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	goplugin "github.com/hashicorp/go-plugin"

	domainPlugin "github.com/felixgeelhaar/smartreviewer/pkg/domain/plugin"
)

// PluginName is the key retrievers are dispensed under.
const PluginName = "retriever"

var HandshakeConfig = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SMARTREVIEWER_PLUGIN",
	MagicCookieValue: "smartreviewer",
}

var PluginMap = map[string]goplugin.Plugin{
	PluginName: &domainPlugin.RetrieverPlugin{},
}

// Serve runs impl as a plugin process. It blocks until the host exits.
func Serve(impl domainPlugin.Retriever) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins: map[string]goplugin.Plugin{
			PluginName: &domainPlugin.RetrieverPlugin{Impl: impl},
		},
	})
}

type Loader struct {
	plugins map[string]*goplugin.Client
}

func NewLoader() *Loader {
	return &Loader{
		plugins: make(map[string]*goplugin.Client),
	}
}

// Load starts the plugin binary at path and initialises it with config.
func (l *Loader) Load(path string, config map[string]string) (domainPlugin.Retriever, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid plugin path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plugin not found: %s", absPath)
		}
		return nil, fmt.Errorf("cannot access plugin: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("plugin path is a directory: %s", absPath)
	}
	if runtime.GOOS != "windows" && info.Mode()&0111 == 0 {
		return nil, fmt.Errorf("plugin is not executable: %s", absPath)
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap,
		// #nosec G204 -- plugin binaries are configured by the workspace owner
		Cmd: exec.Command(absPath),
		AllowedProtocols: []goplugin.Protocol{
			goplugin.ProtocolNetRPC,
		},
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to create plugin client: %w", err)
	}

	raw, err := rpcClient.Dispense(PluginName)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}
	retriever := raw.(domainPlugin.Retriever)
	if config == nil {
		config = map[string]string{}
	}
	if err := retriever.Init(config); err != nil {
		client.Kill()
		return nil, fmt.Errorf("plugin init: %w", err)
	}

	l.plugins[absPath] = client
	return retriever, nil
}

func (l *Loader) Cleanup() {
	for path, client := range l.plugins {
		client.Kill()
		delete(l.plugins, path)
	}
}
