package shared

import (
	"github.com/hashicorp/go-plugin"
)

const (
	PluginTypeAnalyzer string = "analyzer"
	PluginTypeTokens   string = "tokens"
)

// WorkerCommand is the hidden subcommand a host binary runs to become its own worker.
const WorkerCommand = "worker"

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SARIFER",
	MagicCookieValue: "5f0c8be2d8a1b9d4e7a3c61f02b4e9d8a7c35e10",
}

// PluginMap is the client side plugin set used by the host.
var PluginMap = map[string]plugin.Plugin{
	PluginTypeAnalyzer: &AnalyzerPlugin{},
	PluginTypeTokens:   &TokensPlugin{},
}

// ServerPlugins builds the plugin set a worker serves. Both plugins must be backed by the
// same token registry so an analysis can observe cancellations issued through the tokens plugin.
func ServerPlugins(analyzer Analyzer, tokens TokenSource) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginTypeAnalyzer: &AnalyzerPlugin{Impl: analyzer},
		PluginTypeTokens:   &TokensPlugin{Impl: tokens},
	}
}
