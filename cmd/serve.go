package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/angelstreet/navtree/internal/ctxlog"
	"github.com/angelstreet/navtree/internal/server"
	"github.com/angelstreet/navtree/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing navtree tools",
	Long: `Start a Model Context Protocol (MCP) server that exposes tree editing and
device runs as tools. AI agents can call tools directly without shell overhead.

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

Examples:
  navtree serve
  navtree serve --transport streamable-http --port 8080 --host pi4 --device device1
  navtree serve --cache-ttl 0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport: stdio, streamable-http (overrides serve.transport)")
	serveCmd.Flags().Int("port", 0, "HTTP port for streamable-http transport (overrides serve.port)")
	serveCmd.Flags().Int("cache-ttl", -1, "Tree cache TTL in milliseconds, 0 to disable (overrides serve.cache_ttl)")
	addDeviceFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := deviceConfig(cmd)
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")
	cacheTTLMs, _ := cmd.Flags().GetInt("cache-ttl")

	srvCfg := server.Config{
		Transport: cfg.Serve.Transport,
		Port:      cfg.Serve.Port,
		CacheTTL:  cfg.Serve.CacheTTL,
	}
	if transport != "" {
		srvCfg.Transport = transport
	}
	if port > 0 {
		srvCfg.Port = port
	}
	if cacheTTLMs >= 0 {
		srvCfg.CacheTTL = time.Duration(cacheTTLMs) * time.Millisecond
	}

	log := ctxlog.FromContext(cmd.Context())
	withDevice := cfg.Device.BaseURL != ""
	if !withDevice {
		log.Warn("No device base URL configured, goto and run_edge are disabled")
	}
	a, err := openApp(cfg, withDevice)
	if err != nil {
		return err
	}
	defer a.Close()
	srvCfg.Session = a.session()

	server.Version = version.Version
	srv, err := server.New(server.Deps{Editor: a.editor, Trees: a.trees, History: a.audit}, srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	log.Info("Starting MCP server",
		"transport", srvCfg.Transport, "port", srvCfg.Port, "team", cfg.TeamID, "policy", a.editor.Policy().Name())
	return srv.Serve(srvCfg)
}
