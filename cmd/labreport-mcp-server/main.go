package main

import (
	"context"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/uservlrz/client/internal/config"
	"github.com/uservlrz/client/internal/logger"
	"github.com/uservlrz/client/server"
)

func main() {
	// Initialize logger with default configuration
	log, err := logger.NewLogger(logger.LogConfig{})
	if err != nil {
		panic(err)
	}

	cfg, err := config.Load(os.Getenv("LABREPORT_CONFIG"))
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	log.Info("Starting labreport MCP server (extraction service %s)", cfg.API.BaseURL)

	srv := server.CreateServer(cfg, log)
	err = srv.Run(context.Background(), &mcp.StdioTransport{})
	if err != nil {
		log.Fatal("Server failed: %v", err)
	}
}
