package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/a3tai/contract-guardian/internal/advisory"
	"github.com/a3tai/contract-guardian/internal/analysis"
	"github.com/a3tai/contract-guardian/internal/config"
	"github.com/a3tai/contract-guardian/internal/descriptions"
	apperrors "github.com/a3tai/contract-guardian/internal/errors"
	"github.com/a3tai/contract-guardian/internal/extract"
	"github.com/a3tai/contract-guardian/internal/logger"
	"github.com/a3tai/contract-guardian/internal/report"
	"github.com/a3tai/contract-guardian/internal/rules"
)

const (
	// EndpointPath is where the streamable HTTP transport is mounted
	EndpointPath = "/mcp"

	shutdownTimeout = 5 * time.Second
)

// Services are the collaborators behind the tools
type Services struct {
	Coordinator *analysis.Coordinator
	// Asker answers contract_advice; nil reports advice as unavailable
	Asker advisory.Asker
	// Extractor is only consulted for OCR availability in server info
	Extractor *extract.Extractor
}

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	services  Services
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, svc Services, log *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if svc.Coordinator == nil {
		return nil, fmt.Errorf("coordinator cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		services:  svc,
		mcpServer: mcpServer,
		logger:    log,
	}
	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"contract_analyze_file",
		mcp.WithDescription(descriptions.ContractAnalyzeFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the contract; relative paths resolve against the document directory"),
		),
		mcp.WithString("title",
			mcp.Description("Contract title (defaults to the file name)"),
		),
		mcp.WithString("kind",
			mcp.Description("Override the detected media kind: pdf, image or text"),
		),
		mcp.WithBoolean("advise",
			mcp.Description("Include the advisory model narrative when configured (default true)"),
		),
		mcp.WithString("format",
			mcp.Description("Report format: markdown (default) or json"),
		),
	), s.handleAnalyzeFile)

	s.mcpServer.AddTool(mcp.NewTool(
		"contract_scan_text",
		mcp.WithDescription(descriptions.ContractScanTextDescription),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Contract text to scan"),
		),
		mcp.WithString("title",
			mcp.Description("Contract title"),
		),
		mcp.WithBoolean("advise",
			mcp.Description("Include the advisory model narrative when configured (default true)"),
		),
		mcp.WithString("format",
			mcp.Description("Report format: markdown (default) or json"),
		),
	), s.handleScanText)

	s.mcpServer.AddTool(mcp.NewTool(
		"contract_list_rules",
		mcp.WithDescription(descriptions.ContractListRulesDescription),
		mcp.WithString("severity",
			mcp.Description("Only list rules of this severity: low, medium or high"),
		),
	), s.handleListRules)

	s.mcpServer.AddTool(mcp.NewTool(
		"contract_advice",
		mcp.WithDescription(descriptions.ContractAdviceDescription),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer"),
		),
		mcp.WithString("context",
			mcp.Description("Relevant clause or contract text"),
		),
	), s.handleAdvice)

	s.mcpServer.AddTool(mcp.NewTool(
		"contract_server_info",
		mcp.WithDescription(descriptions.ContractServerInfoDescription),
	), s.handleServerInfo)
}

// toolContext tags ctx with a request ID and the tool name for logging
func (s *Server) toolContext(ctx context.Context, tool string) (context.Context, *slog.Logger) {
	ctx = logger.WithRequestID(ctx, uuid.NewString())
	ctx = logger.WithTool(ctx, tool)
	return ctx, logger.WithContext(ctx, s.logger)
}

// Handler functions
func (s *Server) handleAnalyzeFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, log := s.toolContext(ctx, "contract_analyze_file")

	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := parseToolFormat(request.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resolved := s.config.ResolvePath(path)
	if err := s.config.CheckPath(resolved); err != nil {
		return toolError(log, apperrors.Wrap(apperrors.KindInvalidInput, "document path refused", err)), nil
	}
	data, kind, err := extract.ReadFile(resolved, s.config.MaxFileSize)
	if err != nil {
		return toolError(log, err), nil
	}
	if k := request.GetString("kind", ""); k != "" {
		override, err := extract.ParseMediaKind(k)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if override != extract.KindUnknown {
			kind = override
		}
	}

	title := request.GetString("title", "")
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(resolved), filepath.Ext(resolved))
	}

	res, err := s.services.Coordinator.Analyze(ctx, data, kind, title, s.callOptions(request)...)
	if err != nil {
		return toolError(log, err), nil
	}
	return render(res, format)
}

func (s *Server) handleScanText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, log := s.toolContext(ctx, "contract_scan_text")

	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := parseToolFormat(request.GetString("format", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := extract.CheckSize([]byte(text), s.config.MaxFileSize); err != nil {
		return toolError(log, err), nil
	}

	res, err := s.services.Coordinator.AnalyzeText(ctx, text, request.GetString("title", "Pasted text"), s.callOptions(request)...)
	if err != nil {
		return toolError(log, err), nil
	}
	return render(res, format)
}

func (s *Server) handleListRules(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var only rules.Severity
	if v := request.GetString("severity", ""); v != "" {
		sev, err := rules.ParseSeverity(v)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		only = sev
	}
	return mcp.NewToolResultText(s.formatRules(s.services.Coordinator.Catalog(), only)), nil
}

func (s *Server) handleAdvice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx, log := s.toolContext(ctx, "contract_advice")

	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if s.services.Asker == nil {
		return toolError(log, apperrors.New(apperrors.KindAdvisoryUnavailable,
			"advice is unavailable: no advisory model API key is configured")), nil
	}

	answer, err := s.services.Asker.Ask(ctx, question, request.GetString("context", ""))
	if err != nil {
		return toolError(log, err), nil
	}
	return mcp.NewToolResultText(answer), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(s.formatServerInfo()), nil
}

func (s *Server) callOptions(request mcp.CallToolRequest) []analysis.CallOption {
	if !request.GetBool("advise", true) {
		return []analysis.CallOption{analysis.WithoutAdvisory()}
	}
	return nil
}

func parseToolFormat(v string) (report.Format, error) {
	if v == "" {
		return report.FormatMarkdown, nil
	}
	f, err := report.ParseFormat(v)
	if err != nil {
		return "", err
	}
	if f == report.FormatXLSX {
		return "", fmt.Errorf("xlsx output is only available from the contractscan CLI")
	}
	return f, nil
}

func render(res *analysis.Result, format report.Format) (*mcp.CallToolResult, error) {
	var buf bytes.Buffer
	w, err := report.New(format, &buf, report.OrderRule)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := w.Write(res); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render report: %v", err)), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

// toolError turns err into a tool error whose message carries the guidance
// for its kind
func toolError(log *slog.Logger, err error) *mcp.CallToolResult {
	kind := apperrors.KindOf(err)
	log.Warn("tool.fail", "kind", kind, "error", err)

	switch {
	case errors.Is(err, context.Canceled):
		return mcp.NewToolResultError("request cancelled")
	case kind == apperrors.KindUnknown:
		return mcp.NewToolResultError(err.Error())
	}

	msg := err.Error()
	if hint := kind.Hint(); hint != "" {
		msg += "\n\nHint: " + hint
	}
	return mcp.NewToolResultError(msg)
}

// Formatting methods
func (s *Server) formatRules(catalog *rules.Catalog, only rules.Severity) string {
	var b strings.Builder
	if only != "" {
		fmt.Fprintf(&b, "Contract risk rules (%s severity)\n", only)
	} else {
		fmt.Fprintf(&b, "Contract risk rules (%d rules, %d categories)\n", catalog.Len(), len(catalog.Categories()))
	}

	n := 0
	for _, r := range catalog.Rules() {
		if only != "" && r.Severity != only {
			continue
		}
		n++
		fmt.Fprintf(&b, "\n%d. %s [%s]\n", n, r.Category, r.Severity)
		fmt.Fprintf(&b, "   Why it matters: %s\n", r.Explanation)
		fmt.Fprintf(&b, "   Guidance: %s\n", r.Guidance)
	}
	if n == 0 {
		b.WriteString("\nNo rules match.\n")
	}
	return b.String()
}

func (s *Server) formatServerInfo() string {
	catalog := s.services.Coordinator.Catalog()
	opts := s.services.Coordinator.Options()

	text := "📋 Contract Guardian Server Information\n\n"
	text += fmt.Sprintf("Server: %s v%s\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Mode: %s\n", s.config.Mode)
	text += fmt.Sprintf("Document directory: %s\n", s.config.DocumentDirectory)
	if s.config.RestrictToDir {
		text += "Paths outside the document directory: refused\n"
	}
	text += fmt.Sprintf("Maximum file size: %d bytes\n", s.config.MaxFileSize)
	text += fmt.Sprintf("Rules: %d across %d categories\n", catalog.Len(), len(catalog.Categories()))
	text += fmt.Sprintf("Characters analyzed per document: %d\n", opts.MaxAnalysisChars)

	ocr := "unknown"
	if s.services.Extractor != nil {
		ocr = "unavailable (install pdftoppm and tesseract)"
		if s.services.Extractor.OCRAvailable() {
			ocr = "available"
		}
	}
	text += fmt.Sprintf("OCR: %s\n", ocr)

	narrative := "disabled (no API key)"
	if !advisory.IsNoop(s.services.Coordinator.Advisor()) {
		narrative = "enabled"
	}
	text += fmt.Sprintf("Narrative analysis: %s\n", narrative)

	text += "\n🛠️  Available Tools:\n"
	for _, tool := range []struct{ name, usage string }{
		{"contract_analyze_file", "path, [title], [kind], [advise], [format]"},
		{"contract_scan_text", "text, [title], [advise], [format]"},
		{"contract_list_rules", "[severity]"},
		{"contract_advice", "question, [context]"},
		{"contract_server_info", ""},
	} {
		text += fmt.Sprintf("• %s(%s)\n", tool.name, tool.usage)
	}

	text += "\nFlags are pattern matches, not legal advice.\n"
	return text
}

// Run starts the MCP server in the configured mode and returns when ctx is
// cancelled or the transport stops
func (s *Server) Run(ctx context.Context) error {
	switch {
	case s.config.IsServerMode():
		return s.runServerMode(ctx)
	case s.config.IsStdioMode():
		return s.runStdioMode(ctx, os.Stdin, os.Stdout)
	default:
		return fmt.Errorf("unsupported mode: %s", s.config.Mode)
	}
}

// runStdioMode serves the protocol over in and out
func (s *Server) runStdioMode(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Debug("server.start", "mode", config.ModeStdio, "dir", s.config.DocumentDirectory)

	stdio := server.NewStdioServer(s.mcpServer)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))

	err := stdio.Listen(ctx, in, out)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

// Handler returns the HTTP handler serving the streamable transport at
// EndpointPath plus a /healthz probe
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, server.NewStreamableHTTPServer(s.mcpServer))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"server":  s.config.ServerName,
			"version": s.config.Version,
		})
	})
	return mux
}

// runServerMode serves the streamable HTTP transport until ctx is cancelled
func (s *Server) runServerMode(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	s.logger.Info("server.start", "mode", config.ModeServer, "addr", httpServer.Addr, "endpoint", EndpointPath)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down http server: %w", err)
		}
		s.logger.Info("server.stop", "addr", httpServer.Addr)
		return nil
	}
}
