package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"reportharness/internal/config"
	"reportharness/internal/results"
	"reportharness/pkg/logging"

	"github.com/acarl005/stripansi"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Runner discovers and runs test cases. *scheduler.Scheduler implements it.
type Runner interface {
	Discover() ([]string, error)
	RunAll(ctx context.Context) ([]*results.Ledger, error)
}

// RunnerFactory builds a Runner for one invocation's configuration.
type RunnerFactory func(cfg config.Config) Runner

// Server exposes the harness as MCP tools over stdio.
type Server struct {
	cfg       config.Config
	newRunner RunnerFactory
	mcpServer *server.MCPServer
	log       logging.Logger

	// one run at a time, concurrent runs would share the port range
	running sync.Mutex
}

// New creates a Server with the list_test_cases and run_test_cases tools.
func New(cfg config.Config, newRunner RunnerFactory, version string, log logging.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		newRunner: newRunner,
		mcpServer: server.NewMCPServer("reportharness", version, server.WithToolCapabilities(false)),
		log:       log,
	}
	s.registerTools()
	return s
}

// Start serves MCP over stdin/stdout until ctx is done or stdin closes.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("Serving MCP tools over stdio")
	return server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_test_cases",
		mcp.WithDescription("List the test cases found under the configured test path"),
	)
	s.mcpServer.AddTool(listTool, s.handleListTestCases)

	runTool := mcp.NewTool("run_test_cases",
		mcp.WithDescription("Run test cases in fresh environments and return their results"),
		mcp.WithString("tests",
			mcp.Description("Comma separated test case names; empty runs every test case"),
		),
		mcp.WithBoolean("parallel",
			mcp.Description("Run the test cases concurrently (default: configured run mode)"),
		),
	)
	s.mcpServer.AddTool(runTool, s.handleRunTestCases)
}

func (s *Server) handleListTestCases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := s.newRunner(s.cfg).Discover()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list test cases: %v", err)), nil
	}
	if names == nil {
		names = []string{}
	}

	jsonData, err := json.MarshalIndent(names, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format test cases: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}

type caseResult struct {
	results.Summary
	Report string `json:"report"`
}

type runResult struct {
	OK    bool         `json:"ok"`
	Cases []caseResult `json:"cases"`
}

func (s *Server) handleRunTestCases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.running.TryLock() {
		return mcp.NewToolResultError("A run is already in progress"), nil
	}
	defer s.running.Unlock()

	cfg := s.cfg
	args := request.GetArguments()
	if raw, ok := args["tests"].(string); ok && strings.TrimSpace(raw) != "" {
		cfg.Tests = nil
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.Tests = append(cfg.Tests, name)
			}
		}
	}
	if parallel, ok := args["parallel"].(bool); ok {
		cfg.RunParallel = parallel
	}

	ledgers, err := s.newRunner(cfg).RunAll(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to run test cases: %v", err)), nil
	}

	out := runResult{OK: true, Cases: []caseResult{}}
	for _, l := range ledgers {
		summary := l.Summary()
		out.OK = out.OK && summary.OK()
		out.Cases = append(out.Cases, caseResult{Summary: summary, Report: stripansi.Strip(l.Render())})
	}

	jsonData, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to format results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(jsonData)), nil
}
