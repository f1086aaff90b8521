package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ctxview/internal/journal"
	"ctxview/internal/model"
)

const (
	toolOpenViewer         = "open_viewer"
	toolListFiles          = "list_files"
	toolReadFile           = "read_file"
	toolRenderLatex        = "render_latex"
	toolGetSelection       = "get_selection"
	toolClearSelection     = "clear_selection"
	toolNavigateToLine     = "navigate_to_line"
	toolNavigateToText     = "navigate_to_text"
	toolNavigateToFunction = "navigate_to_function"
	toolSelectionHistory   = "selection_history"
)

type toolExecutionError struct {
	Code      string
	Message   string
	Retryable bool
}

type toolHandler func(ctx context.Context, args map[string]any) (*mcpsdk.CallToolResult, error)

type toolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any
	handler     toolHandler
}

func (s *Server) toolDefinitions() []toolDefinition {
	return []toolDefinition{
		{
			Name:        toolOpenViewer,
			Description: "Start the web viewer if needed and return its URL. Open it in a browser to browse files and select text.",
			InputSchema: emptyInputSchema(),
			handler:     s.handleOpenViewer,
		},
		{
			Name:        toolListFiles,
			Description: "List files and directories under a path relative to the root.",
			InputSchema: listFilesInputSchema(),
			handler:     s.handleListFiles,
		},
		{
			Name:        toolReadFile,
			Description: "Read a file relative to the root. Binary files return only their type and size.",
			InputSchema: pathInputSchema("file path relative to the root"),
			handler:     s.handleReadFile,
		},
		{
			Name:        toolRenderLatex,
			Description: "Compile a .tex file to PDF next to the source and return where to view it.",
			InputSchema: pathInputSchema("path of a .tex file relative to the root"),
			handler:     s.handleRenderLatex,
		},
		{
			Name:        toolGetSelection,
			Description: "Return the text the user selected in the viewer. With wait=true, block until a new selection is confirmed or the timeout elapses.",
			InputSchema: getSelectionInputSchema(),
			handler:     s.handleGetSelection,
		},
		{
			Name:        toolClearSelection,
			Description: "Discard the current selection.",
			InputSchema: emptyInputSchema(),
			handler:     s.handleClearSelection,
		},
		{
			Name:        toolNavigateToLine,
			Description: "Ask the viewer to open a file and scroll to a line.",
			InputSchema: navigateInputSchema("line", map[string]any{"type": "integer", "minimum": 1, "description": "1-based line number"}),
			handler:     s.handleNavigateToLine,
		},
		{
			Name:        toolNavigateToText,
			Description: "Ask the viewer to open a file and scroll to the first occurrence of some text.",
			InputSchema: navigateInputSchema("text", map[string]any{"type": "string", "minLength": 1, "description": "text to search for; the first occurrence is shown"}),
			handler:     s.handleNavigateToText,
		},
		{
			Name:        toolNavigateToFunction,
			Description: "Ask the viewer to open a file and scroll to a function, class or type definition.",
			InputSchema: navigateInputSchema("name", map[string]any{"type": "string", "minLength": 1, "description": "function, class or type name to locate"}),
			handler:     s.handleNavigateToFunction,
		},
		{
			Name:        toolSelectionHistory,
			Description: "List recent selection and navigation events, newest first.",
			InputSchema: selectionHistoryInputSchema(),
			handler:     s.handleSelectionHistory,
		},
	}
}

// registerTools adds every tool with a raw handler. Arguments are validated
// by the handlers so a bad call becomes an isError result, not a protocol
// error.
func (s *Server) registerTools() {
	for _, def := range s.toolDefinitions() {
		s.mcp.AddTool(&mcpsdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, s.dispatch(def))
	}
}

func (s *Server) dispatch(def toolDefinition) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var raw json.RawMessage
		if req != nil && req.Params != nil {
			raw = req.Params.Arguments
		}
		args, err := decodeArguments(raw)
		if err != nil {
			s.log.Info("tool rejected", zap.String("tool", def.Name), zap.Error(err))
			return invalidArgument(err.Error()), nil
		}
		return def.handler(ctx, args)
	}
}

func (s *Server) handleOpenViewer(ctx context.Context, _ map[string]any) (*mcpsdk.CallToolResult, error) {
	if s.deps.Launcher == nil {
		return newToolErrorResult(toolExecutionError{
			Code:    "VIEWER_UNAVAILABLE",
			Message: "no viewer launcher configured",
		}), nil
	}
	viewerURL, err := s.deps.Launcher.Ensure(ctx)
	if err != nil {
		if !errors.Is(err, model.ErrViewerUnavailable) {
			err = fmt.Errorf("%w: %v", model.ErrViewerUnavailable, err)
		}
		return s.errorResult(toolOpenViewer, err), nil
	}
	s.log.Info("viewer ready", zap.String("url", viewerURL))
	return textResult(fmt.Sprintf("Web viewer is running at: %s\n\n"+
		"Open this URL in your browser to select text from files. "+
		"After making a selection and clicking 'Send selection', use the 'get_selection' tool to retrieve it.", viewerURL)), nil
}

func (s *Server) handleListFiles(_ context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	path, err := parseOptionalString(args, "path")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	entries, err := s.deps.Gateway.ListDirectory(path)
	if err != nil {
		return s.errorResult(toolListFiles, err), nil
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return s.errorResult(toolListFiles, err), nil
	}
	return textResult(string(data)), nil
}

func (s *Server) handleReadFile(_ context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	path, err := parseRequiredString(args, "path")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	fc, err := s.deps.Gateway.ReadFile(path)
	if err != nil {
		return s.errorResult(toolReadFile, err), nil
	}
	if !fc.IsText {
		return textResult(fmt.Sprintf("Binary file: %s\nMIME Type: %s\nSize: %d bytes", fc.Path, fc.MimeType, fc.Size)), nil
	}
	return textResult(fmt.Sprintf("File: %s\nMIME Type: %s\n\n%s", fc.Path, fc.MimeType, fc.Content)), nil
}

func (s *Server) handleRenderLatex(ctx context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	path, err := parseRequiredString(args, "path")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	res, err := s.deps.Gateway.RenderLatex(ctx, path)
	if err != nil {
		return s.errorResult(toolRenderLatex, err), nil
	}
	text := fmt.Sprintf("LaTeX compiled successfully!\n\nPDF: %s", res.PDFPath)
	if base := s.viewerURL(); base != "" {
		text += "\nView at: " + rawLink(base, res.PDFPath)
	}
	return textResult(text), nil
}

func (s *Server) handleGetSelection(ctx context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	wait, _, err := parseOptionalBool(args, "wait")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	clearAfterRead, set, err := parseOptionalBool(args, "clear_after_read")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	if !set {
		clearAfterRead = wait
	}
	seconds, _, err := parseOptionalNumber(args, "timeout")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}

	if !wait {
		sel, ok := s.deps.Selections.Get(ctx, clearAfterRead)
		if !ok {
			return textResult("No selection available. Use 'open_viewer' to open the UI and make a selection, " +
				"or use wait=true to wait for a selection."), nil
		}
		return textResult(formatSelection(sel)), nil
	}

	if seconds < 0 {
		return invalidArgument("timeout must be positive"), nil
	}
	timeout := waitTimeout(seconds, s.deps.WaitTimeout)

	s.log.Info("waiting for selection", zap.Duration("timeout", timeout))
	started := time.Now()
	sel, ok, err := s.deps.Selections.Wait(ctx, timeout, clearAfterRead)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return s.errorResult(toolGetSelection, err), nil
	}
	if !ok {
		s.log.Info("no selection before timeout", zap.Duration("timeout", timeout))
		return textResult(fmt.Sprintf("No selection made within %s seconds.", formatSeconds(timeout))), nil
	}
	s.log.Info("selection received", zap.Duration("after", time.Since(started)))
	return textResult(formatSelection(sel)), nil
}

// waitTimeout converts the requested seconds, falling back to def for zero
// and capping at maxWaitTimeout.
func waitTimeout(seconds float64, def time.Duration) time.Duration {
	switch {
	case seconds <= 0:
		return def
	case seconds >= maxWaitTimeout.Seconds():
		return maxWaitTimeout
	}
	return time.Duration(seconds * float64(time.Second))
}

func (s *Server) handleClearSelection(ctx context.Context, _ map[string]any) (*mcpsdk.CallToolResult, error) {
	s.deps.Selections.Clear(ctx)
	return textResult("Selection cleared."), nil
}

func (s *Server) handleNavigateToLine(ctx context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	path, err := parseRequiredString(args, "path")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	line, err := parseRequiredInteger(args, "line")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	if _, err := s.deps.Navigations.Publish(ctx, model.CommandGotoLine, path, model.LineTarget(line)); err != nil {
		return s.errorResult(toolNavigateToLine, err), nil
	}
	return textResult(fmt.Sprintf("Navigation command sent: Go to line %d in %s\n\n"+
		"The web viewer will automatically navigate to this location if it's open.", line, path)), nil
}

func (s *Server) handleNavigateToText(ctx context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	path, text, err := parsePathAnd(args, "text")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	if _, err := s.deps.Navigations.Publish(ctx, model.CommandSearchText, path, model.TextTarget(text)); err != nil {
		return s.errorResult(toolNavigateToText, err), nil
	}
	return textResult(fmt.Sprintf("Navigation command sent: Search for '%s' in %s\n\n"+
		"The web viewer will automatically navigate to the first occurrence if it's open.", text, path)), nil
}

func (s *Server) handleNavigateToFunction(ctx context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	path, name, err := parsePathAnd(args, "name")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	if _, err := s.deps.Navigations.Publish(ctx, model.CommandFindSymbol, path, model.TextTarget(name)); err != nil {
		return s.errorResult(toolNavigateToFunction, err), nil
	}
	return textResult(fmt.Sprintf("Navigation command sent: Find function/class '%s' in %s\n\n"+
		"The web viewer will automatically navigate to the definition if it's open.", name, path)), nil
}

func (s *Server) handleSelectionHistory(ctx context.Context, args map[string]any) (*mcpsdk.CallToolResult, error) {
	if s.deps.History == nil {
		return textResult("Selection history is disabled."), nil
	}
	limit, _, err := parseOptionalInteger(args, "limit")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	switch {
	case limit < 0:
		return invalidArgument("limit must be positive"), nil
	case limit == 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	rawKind, err := parseOptionalString(args, "kind")
	if err != nil {
		return invalidArgument(err.Error()), nil
	}
	kind, err := journal.ParseKind(rawKind)
	if err != nil {
		return s.errorResult(toolSelectionHistory, err), nil
	}

	events, err := s.deps.History.List(ctx, kind, limit)
	if err != nil {
		return s.errorResult(toolSelectionHistory, err), nil
	}
	if len(events) == 0 {
		return textResult("No events recorded yet."), nil
	}
	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return s.errorResult(toolSelectionHistory, err), nil
	}
	return textResult(string(data)), nil
}

// errorResult logs err and converts it into an isError result carrying its
// stable code.
func (s *Server) errorResult(tool string, err error) *mcpsdk.CallToolResult {
	code := model.ErrorCode(err)
	msg := err.Error()
	var ce *model.CompileError
	if errors.As(err, &ce) {
		msg = ce.Message
	}
	if code == "INTERNAL_ERROR" {
		s.log.Error("tool failed", zap.String("tool", tool), zap.Error(err))
	} else {
		s.log.Info("tool rejected", zap.String("tool", tool), zap.String("code", code), zap.Error(err))
	}
	return newToolErrorResult(toolExecutionError{
		Code:      code,
		Message:   msg,
		Retryable: code == model.CompileTimeout || code == "VIEWER_UNAVAILABLE",
	})
}

func invalidArgument(msg string) *mcpsdk.CallToolResult {
	return newToolErrorResult(toolExecutionError{Code: "INVALID_ARGUMENT", Message: msg})
}

func newToolErrorResult(toolErr toolExecutionError) *mcpsdk.CallToolResult {
	text := fmt.Sprintf("ERROR: %s: %s", toolErr.Code, toolErr.Message)
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		StructuredContent: map[string]any{
			"error": map[string]any{
				"code":      toolErr.Code,
				"message":   toolErr.Message,
				"retryable": toolErr.Retryable,
			},
		},
	}
}

func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

func formatSelection(sel *model.Selection) string {
	return fmt.Sprintf("Selection from: %s\nLines: %d-%d\n\n%s", sel.FilePath, sel.StartLine, sel.EndLine, sel.SelectedText)
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

func rawLink(base, rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/raw/" + strings.Join(parts, "/")
}
