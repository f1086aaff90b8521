package files

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ctxview/internal/model"
)

// fakeCompiler writes an executable shell script that stands in for
// pdflatex and returns its path.
func fakeCompiler(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler is a shell script")
	}
	p := filepath.Join(t.TempDir(), "fakelatex")
	require.NoError(t, os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return p
}

func latexGateway(t *testing.T, opts LatexOptions) (*Gateway, string) {
	t.Helper()
	root := t.TempDir()
	g, err := New(root, Options{Latex: opts})
	require.NoError(t, err)
	return g, root
}

func assertNoAux(t *testing.T, dir, stem string) {
	t.Helper()
	for _, ext := range []string{".aux", ".log"} {
		_, err := os.Stat(filepath.Join(dir, stem+ext))
		assert.True(t, os.IsNotExist(err), "%s%s should be removed", stem, ext)
	}
}

func TestRenderLatexRequiresTexFile(t *testing.T) {
	g, root := latexGateway(t, LatexOptions{})
	writeFile(t, root, "notes.md", []byte("# x"))
	_, err := g.RenderLatex(context.Background(), "notes.md")
	assert.ErrorIs(t, err, model.ErrNotTexFile)

	_, err = g.RenderLatex(context.Background(), "../x.tex")
	assert.ErrorIs(t, err, model.ErrAccessDenied)
}

func TestRenderLatexToolMissing(t *testing.T) {
	g, root := latexGateway(t, LatexOptions{Compiler: "definitely-not-a-latex-binary"})
	writeFile(t, root, "doc.tex", []byte(`\documentclass{article}`))

	_, err := g.RenderLatex(context.Background(), "doc.tex")
	var ce *model.CompileError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, model.CompileToolMissing, ce.Code)
}

func TestRenderLatexSuccess(t *testing.T) {
	script := `stem=$(basename "$2" .tex)
echo aux > "$stem.aux"
echo log > "$stem.log"
echo pdf > "$stem.pdf"`
	g, root := latexGateway(t, LatexOptions{Compiler: fakeCompiler(t, script)})
	writeFile(t, root, "paper/main.tex", []byte(`\documentclass{article}`))

	res, err := g.RenderLatex(context.Background(), "paper/main.tex")
	require.NoError(t, err)
	assert.Equal(t, "paper/main.pdf", res.PDFPath)
	assert.FileExists(t, filepath.Join(root, "paper", "main.pdf"))
	assertNoAux(t, filepath.Join(root, "paper"), "main")
}

func TestRenderLatexFailureTruncatesDiagnostics(t *testing.T) {
	script := `stem=$(basename "$2" .tex)
echo aux > "$stem.aux"
echo log > "$stem.log"
i=0
while [ $i -lt 100 ]; do printf 'Undefined control sequence. ' >&2; i=$((i+1)); done
exit 1`
	g, root := latexGateway(t, LatexOptions{Compiler: fakeCompiler(t, script)})
	writeFile(t, root, "bad.tex", []byte(`\badmacro`))

	_, err := g.RenderLatex(context.Background(), "bad.tex")
	var ce *model.CompileError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, model.CompileFailed, ce.Code)
	assert.Len(t, []rune(ce.Message), DefaultMaxErrorChars)
	assert.True(t, strings.HasPrefix(ce.Message, "Undefined control sequence."))
	assertNoAux(t, root, "bad")
}

func TestRenderLatexTimeoutKillsCompiler(t *testing.T) {
	g, root := latexGateway(t, LatexOptions{
		Compiler: fakeCompiler(t, "exec sleep 30"),
		Timeout:  150 * time.Millisecond,
	})
	writeFile(t, root, "slow.tex", []byte(`\documentclass{article}`))

	start := time.Now()
	_, err := g.RenderLatex(context.Background(), "slow.tex")
	var ce *model.CompileError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, model.CompileTimeout, ce.Code)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRenderLatexWithoutPDFIsFailure(t *testing.T) {
	g, root := latexGateway(t, LatexOptions{Compiler: fakeCompiler(t, "exit 0")})
	writeFile(t, root, "empty.tex", []byte(""))

	_, err := g.RenderLatex(context.Background(), "empty.tex")
	var ce *model.CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, model.CompileFailed, ce.Code)
}
