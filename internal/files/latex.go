package files

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"ctxview/internal/model"
)

const (
	DefaultLatexCompiler = "pdflatex"
	DefaultLatexTimeout  = 60 * time.Second
	DefaultMaxErrorChars = 500
)

type LatexOptions struct {
	Compiler      string
	Timeout       time.Duration
	MaxErrorChars int
}

func (o LatexOptions) withDefaults() LatexOptions {
	if strings.TrimSpace(o.Compiler) == "" {
		o.Compiler = DefaultLatexCompiler
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultLatexTimeout
	}
	if o.MaxErrorChars <= 0 {
		o.MaxErrorChars = DefaultMaxErrorChars
	}
	return o
}

// RenderLatex compiles rel to a PDF next to the source. Auxiliary .aux and
// .log files are removed whatever the outcome.
func (g *Gateway) RenderLatex(ctx context.Context, rel string) (model.RenderResult, error) {
	clean, abs, err := g.resolve(rel)
	if err != nil {
		return model.RenderResult{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return model.RenderResult{}, mapFSError(err)
	}
	if !info.Mode().IsRegular() {
		return model.RenderResult{}, fmt.Errorf("%s: %w", clean, model.ErrNotAFile)
	}
	if !strings.EqualFold(filepath.Ext(abs), ".tex") {
		return model.RenderResult{}, fmt.Errorf("%s: %w", clean, model.ErrNotTexFile)
	}

	compiler, err := exec.LookPath(g.latex.Compiler)
	if err != nil {
		return model.RenderResult{}, &model.CompileError{
			Code:    model.CompileToolMissing,
			Message: g.latex.Compiler + " not found, install a LaTeX distribution",
			Cause:   err,
		}
	}

	dir := filepath.Dir(abs)
	stem := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	defer g.removeAux(dir, stem)

	runCtx, cancel := context.WithTimeout(ctx, g.latex.Timeout)
	defer cancel()
	cmd := exec.CommandContext(runCtx, compiler, "-interaction=nonstopmode", filepath.Base(abs))
	cmd.Dir = dir
	cmd.WaitDelay = 2 * time.Second
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	g.logger.Debug("latex finished", zap.String("path", clean), zap.Duration("took", time.Since(started)), zap.Error(runErr))

	if ctx.Err() != nil {
		return model.RenderResult{}, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return model.RenderResult{}, &model.CompileError{
			Code:    model.CompileTimeout,
			Message: fmt.Sprintf("compilation timed out after %s", g.latex.Timeout),
			Cause:   runCtx.Err(),
		}
	}
	if runErr != nil {
		msg := stderr.String()
		if strings.TrimSpace(msg) == "" {
			msg = stdout.String()
		}
		if strings.TrimSpace(msg) == "" {
			msg = g.latex.Compiler + " compilation failed"
		}
		return model.RenderResult{}, &model.CompileError{
			Code:    model.CompileFailed,
			Message: truncateRunes(msg, g.latex.MaxErrorChars),
			Cause:   runErr,
		}
	}

	pdf := filepath.Join(dir, stem+".pdf")
	if _, err := os.Stat(pdf); err != nil {
		return model.RenderResult{}, &model.CompileError{
			Code:    model.CompileFailed,
			Message: "compiler exited cleanly but produced no PDF",
			Cause:   err,
		}
	}
	return model.RenderResult{Source: clean, PDFPath: siblingRel(clean, stem+".pdf")}, nil
}

func (g *Gateway) removeAux(dir, stem string) {
	for _, ext := range []string{".aux", ".log"} {
		p := filepath.Join(dir, stem+ext)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			g.logger.Warn("remove latex artifact", zap.String("path", p), zap.Error(err))
		}
	}
}

func siblingRel(rel, name string) string {
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		return rel[:i+1] + name
	}
	return name
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
