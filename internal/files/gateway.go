// Package files gives sandboxed access to the directory tree the viewer
// serves. Every path is resolved relative to the root and rejected when it,
// or the target of a symlink along it, leaves the root.
package files

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ctxview/internal/model"
)

type Options struct {
	Latex  LatexOptions
	Logger *zap.Logger
}

type Gateway struct {
	root   string
	latex  LatexOptions
	logger *zap.Logger
}

func New(root string, opts Options) (*Gateway, error) {
	abs, err := filepath.Abs(strings.TrimSpace(root))
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s: %w", resolved, model.ErrNotADirectory)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Gateway{root: resolved, latex: opts.Latex.withDefaults(), logger: opts.Logger.Named("files")}, nil
}

func (g *Gateway) Root() string { return g.root }

// ListDirectory returns the non-hidden children of rel sorted by name.
func (g *Gateway) ListDirectory(rel string) ([]model.DirEntry, error) {
	clean, abs, err := g.resolve(rel)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, mapFSError(err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", clean, model.ErrNotADirectory)
	}

	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil, mapFSError(err)
	}
	entries := make([]model.DirEntry, 0, len(dirents))
	for _, de := range dirents {
		name := de.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		// Stat follows symlinks so a linked directory lists as a directory.
		fi, err := os.Stat(filepath.Join(abs, name))
		if err != nil {
			g.logger.Debug("skip unreadable entry", zap.String("name", name), zap.Error(err))
			continue
		}
		entry := model.DirEntry{
			Name:  name,
			Path:  joinRel(clean, name),
			IsDir: fi.IsDir(),
		}
		if !entry.IsDir {
			entry.Size = fi.Size()
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// ReadFile returns the decoded text of rel, or only its metadata when the
// file contains a NUL byte.
func (g *Gateway) ReadFile(rel string) (model.FileContent, error) {
	clean, abs, err := g.resolve(rel)
	if err != nil {
		return model.FileContent{}, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return model.FileContent{}, mapFSError(err)
	}
	if !info.Mode().IsRegular() {
		return model.FileContent{}, fmt.Errorf("%s: %w", clean, model.ErrNotAFile)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return model.FileContent{}, mapFSError(err)
	}

	isText := bytes.IndexByte(data, 0) < 0
	fc := model.FileContent{
		Path:     clean,
		MimeType: MimeType(clean, isText),
		IsText:   isText,
		Size:     info.Size(),
		DocType:  ClassifyDocType(clean),
	}
	if isText {
		fc.Content = strings.ToValidUTF8(string(data), "\uFFFD")
	}
	return fc, nil
}

// Open resolves rel and opens it for streaming. The caller closes the file.
func (g *Gateway) Open(rel string) (*os.File, fs.FileInfo, error) {
	clean, abs, err := g.resolve(rel)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, nil, mapFSError(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, mapFSError(err)
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, fmt.Errorf("%s: %w", clean, model.ErrNotAFile)
	}
	return f, info, nil
}

// resolve returns the cleaned slash-separated relative path and the real
// absolute path it refers to.
func (g *Gateway) resolve(rel string) (string, string, error) {
	trimmed := strings.TrimSpace(rel)
	trimmed = strings.TrimLeft(filepath.ToSlash(trimmed), "/")
	if filepath.IsAbs(trimmed) || filepath.VolumeName(trimmed) != "" {
		return "", "", fmt.Errorf("%s: %w", rel, model.ErrAccessDenied)
	}
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(trimmed)))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", "", fmt.Errorf("%s: %w", rel, model.ErrAccessDenied)
	}
	if clean == "." {
		clean = ""
	}

	abs := filepath.Join(g.root, filepath.FromSlash(clean))
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", "", mapFSError(err)
	}
	within, err := filepath.Rel(g.root, resolved)
	if err != nil || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", "", fmt.Errorf("%s: %w", rel, model.ErrAccessDenied)
	}
	return clean, resolved, nil
}

func joinRel(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func mapFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", model.ErrNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", model.ErrAccessDenied, err)
	default:
		return err
	}
}
