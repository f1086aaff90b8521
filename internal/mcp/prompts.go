package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	promptAnalyzeSelection  = "analyze-selection"
	promptRefactorSelection = "refactor-selection"
	promptExplainLatex      = "explain-latex"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(&mcpsdk.Prompt{
		Name:        promptAnalyzeSelection,
		Description: "Analyze a code or document selection from the viewer",
		Arguments: []*mcpsdk.PromptArgument{
			{Name: "question", Description: "What you want to know about the selection"},
		},
	}, s.analyzeSelectionPrompt)

	s.mcp.AddPrompt(&mcpsdk.Prompt{
		Name:        promptRefactorSelection,
		Description: "Refactor selected code with specific instructions",
		Arguments: []*mcpsdk.PromptArgument{
			{Name: "instructions", Description: "How to refactor the code", Required: true},
		},
	}, s.refactorSelectionPrompt)

	s.mcp.AddPrompt(&mcpsdk.Prompt{
		Name:        promptExplainLatex,
		Description: "Explain a LaTeX document section",
		Arguments: []*mcpsdk.PromptArgument{
			{Name: "focus", Description: "What aspect to focus on (structure, content, formatting, etc.)"},
		},
	}, s.explainLatexPrompt)
}

func (s *Server) analyzeSelectionPrompt(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	sel, ok := s.deps.Selections.Get(ctx, false)
	if !ok {
		return noSelectionPrompt(), nil
	}
	question := promptArg(req, "question", "What does this code/text do?")
	return userPrompt(
		"Analyze selection from "+sel.FilePath,
		fmt.Sprintf("I've selected the following from %s (lines %d-%d):\n\n```\n%s\n```\n\n%s",
			sel.FilePath, sel.StartLine, sel.EndLine, sel.SelectedText, question),
	), nil
}

func (s *Server) refactorSelectionPrompt(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	sel, ok := s.deps.Selections.Get(ctx, false)
	if !ok {
		return noSelectionPrompt(), nil
	}
	instructions := promptArg(req, "instructions", "")
	if instructions == "" {
		return userPrompt("Missing refactoring instructions",
			"Please provide refactoring instructions in the 'instructions' argument."), nil
	}
	return userPrompt(
		"Refactor selection from "+sel.FilePath,
		fmt.Sprintf("Please refactor the following code from %s (lines %d-%d):\n\n```\n%s\n```\n\n"+
			"Instructions: %s\n\nProvide the refactored code and explain the changes.",
			sel.FilePath, sel.StartLine, sel.EndLine, sel.SelectedText, instructions),
	), nil
}

func (s *Server) explainLatexPrompt(ctx context.Context, req *mcpsdk.GetPromptRequest) (*mcpsdk.GetPromptResult, error) {
	sel, ok := s.deps.Selections.Get(ctx, false)
	if !ok {
		return noSelectionPrompt(), nil
	}
	focus := promptArg(req, "focus", "content and structure")
	return userPrompt(
		"Explain LaTeX from "+sel.FilePath,
		fmt.Sprintf("I've selected the following LaTeX from %s (lines %d-%d):\n\n```latex\n%s\n```\n\n"+
			"Please explain this, focusing on: %s",
			sel.FilePath, sel.StartLine, sel.EndLine, sel.SelectedText, focus),
	), nil
}

func promptArg(req *mcpsdk.GetPromptRequest, name, fallback string) string {
	if req == nil || req.Params == nil {
		return fallback
	}
	if v, ok := req.Params.Arguments[name]; ok && v != "" {
		return v
	}
	return fallback
}

func noSelectionPrompt() *mcpsdk.GetPromptResult {
	return userPrompt("No selection available",
		"Please open the viewer (use 'open_viewer' tool) and select some text first.")
}

func userPrompt(description, text string) *mcpsdk.GetPromptResult {
	return &mcpsdk.GetPromptResult{
		Description: description,
		Messages: []*mcpsdk.PromptMessage{
			{Role: "user", Content: &mcpsdk.TextContent{Text: text}},
		},
	}
}
