package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sourcegraph/jsonrpc2"
	"github.com/spf13/cobra"

	"github.com/sourcegraph/refsearch/langserver"
	"github.com/sourcegraph/refsearch/langserver/modes"
	"github.com/sourcegraph/refsearch/pkg/lspserver"
	"github.com/sourcegraph/refsearch/tracer"
)

var serveFlags struct {
	mode           string
	addr           string
	trace          bool
	pprof          string
	metricsAddr    string
	maxParallelism int
	indexSize      int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server",
	Long: `Run the language server over stdio, TCP or WebSocket.

The server answers textDocument/references and the workspace/xreferences
extension. Settings come from refsearch.toml or refsearch.yaml in the
workspace root, the flags below and the client's initializationOptions,
in increasing order of precedence.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.mode, "mode", "stdio", "communication mode (stdio|tcp|websocket)")
	f.StringVar(&serveFlags.addr, "addr", ":4389", "server listen address (tcp or websocket)")
	f.BoolVar(&serveFlags.trace, "trace", false, "print all requests and responses")
	f.StringVar(&serveFlags.pprof, "pprof", "", "start a pprof http server (https://golang.org/pkg/net/http/pprof/)")
	f.StringVar(&serveFlags.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	f.IntVar(&serveFlags.maxParallelism, "maxparallelism", 0, "use at max N parallel goroutines to read and parse files. Can be overridden by the config file and InitializationOptions.")
	f.IntVar(&serveFlags.indexSize, "index-size", 0, "number of document indexes kept in memory. Can be overridden by the config file and InitializationOptions.")
	rootCmd.AddCommand(serveCmd)
}

func serveConfig() langserver.Config {
	cfg := langserver.NewDefaultConfig()
	if serveFlags.maxParallelism > 0 {
		cfg.MaxParallelism = serveFlags.maxParallelism
	}
	if serveFlags.indexSize > 0 {
		cfg.IndexSize = serveFlags.indexSize
	}
	return cfg
}

func runServe() error {
	tracer.Init("refsearch", tracer.FromEnv())

	// Start pprof server, if desired.
	if serveFlags.pprof != "" {
		go func() {
			log.Println(http.ListenAndServe(serveFlags.pprof, nil))
		}()
	}
	if serveFlags.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Println("refsearch: serving metrics on", serveFlags.metricsAddr)
			log.Println(http.ListenAndServe(serveFlags.metricsAddr, mux))
		}()
	}

	var connOpt []jsonrpc2.ConnOpt
	if serveFlags.trace {
		connOpt = append(connOpt, jsonrpc2.LogMessages(log.New(log.Writer(), "", 0)))
	}

	cfg := serveConfig()
	newHandler := func() jsonrpc2.Handler {
		return &lspserver.Handler{
			Init: func(context.Context, *jsonrpc2.Conn, *jsonrpc2.Request) jsonrpc2.Handler {
				return langserver.NewHandler(cfg)
			},
		}
	}

	switch serveFlags.mode {
	case "stdio":
		return modes.Stdio(newHandler, connOpt)
	case "tcp":
		return modes.TCP(serveFlags.addr, newHandler, connOpt)
	case "websocket":
		return modes.WebSocket(serveFlags.addr, newHandler, connOpt)
	default:
		return fmt.Errorf("invalid mode %q", serveFlags.mode)
	}
}
