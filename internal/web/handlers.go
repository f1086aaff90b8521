package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"ctxview/internal/model"
	"ctxview/internal/render"
)

const maxBodyBytes = 4 << 20

type fileContentResponse struct {
	model.FileContent
	FileURL     string   `json:"file_url"`
	Highlighted []string `json:"highlighted,omitempty"`
}

type renderTexResponse struct {
	Success bool   `json:"success"`
	PDFURL  string `json:"pdf_url,omitempty"`
	PDFPath string `json:"pdf_path,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

type confirmSelectionRequest struct {
	FilePath     string `json:"file_path"`
	StartLine    int    `json:"start_line"`
	EndLine      int    `json:"end_line"`
	SelectedText string `json:"selected_text"`
}

type navigationExecutedRequest struct {
	Timestamp *float64 `json:"timestamp"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := s.deps.Gateway.ListDirectory(r.PathValue("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFileContent(w http.ResponseWriter, r *http.Request) {
	rel := r.PathValue("path")
	fc, err := s.deps.Gateway.ReadFile(rel)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := fileContentResponse{FileContent: fc, FileURL: rawURL(fc.Path)}
	if fc.IsText && fc.Size <= maxHighlightBytes {
		lines, err := render.Highlight(fc.Path, fc.Content)
		if err != nil {
			s.logger.Debug("highlight failed", zap.String("path", fc.Path), zap.Error(err))
		} else {
			resp.Highlighted = lines
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRenderTex(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Gateway.RenderLatex(r.Context(), r.PathValue("path"))
	if err != nil {
		var ce *model.CompileError
		if errors.As(err, &ce) {
			writeJSON(w, http.StatusOK, renderTexResponse{Error: ce.Message, Code: ce.Code})
			return
		}
		writeJSON(w, statusFor(err), renderTexResponse{Error: err.Error(), Code: model.ErrorCode(err)})
		return
	}
	writeJSON(w, http.StatusOK, renderTexResponse{
		Success: true,
		PDFURL:  rawURL(res.PDFPath),
		PDFPath: res.PDFPath,
	})
}

func (s *Server) handleRenderMarkdown(w http.ResponseWriter, r *http.Request) {
	fc, err := s.deps.Gateway.ReadFile(r.PathValue("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !fc.IsText {
		writeError(w, fmt.Errorf("%w: %s is binary", model.ErrInvalidArgument, fc.Path))
		return
	}
	html, err := render.Markdown(fc.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": fc.Path, "html": html})
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	f, info, err := s.deps.Gateway.Open(r.PathValue("path"))
	if err != nil {
		writeError(w, err)
		return
	}
	defer func() { _ = f.Close() }()
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (s *Server) handleGetSelection(w http.ResponseWriter, r *http.Request) {
	sel, _ := s.deps.Selections.Get(r.Context(), false)
	writeJSON(w, http.StatusOK, map[string]any{"selection": sel})
}

func (s *Server) handleConfirmSelection(w http.ResponseWriter, r *http.Request) {
	var req confirmSelectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	sel, err := s.deps.Selections.Publish(r.Context(), req.FilePath, req.StartLine, req.EndLine, req.SelectedText)
	if err != nil {
		writeError(w, err)
		return
	}
	s.logger.Info("selection confirmed",
		zap.String("file", sel.FilePath), zap.Int("start", sel.StartLine), zap.Int("end", sel.EndLine))
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": sel.Timestamp})
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	cleared := s.deps.Selections.Clear(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "cleared": cleared})
}

func (s *Server) handleNavigationState(w http.ResponseWriter, _ *http.Request) {
	cmd, _ := s.deps.Navigations.Fetch()
	writeJSON(w, http.StatusOK, map[string]any{"navigation": cmd})
}

func (s *Server) handleNavigationExecuted(w http.ResponseWriter, r *http.Request) {
	var req navigationExecutedRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Timestamp == nil {
		writeError(w, fmt.Errorf("%w: timestamp is required", model.ErrInvalidArgument))
		return
	}
	acked := s.deps.Navigations.Acknowledge(r.Context(), *req.Timestamp)
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "acknowledged": acked})
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", model.ErrInvalidArgument, err)
	}
	return nil
}

// rawURL builds the /raw/ link for a gateway-relative path.
func rawURL(rel string) string {
	parts := strings.Split(rel, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return "/raw/" + strings.Join(parts, "/")
}
