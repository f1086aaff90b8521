package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"ctxview/internal/model"
)

const fileURIPrefix = "file:///"

func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(&mcpsdk.ResourceTemplate{
		Name:        "file",
		Description: "A file under the viewer root, addressed by its relative path.",
		URITemplate: fileURIPrefix + "{+path}",
	}, s.readFileResource)
}

func (s *Server) readFileResource(_ context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	uri := req.Params.URI
	rel, err := relFromURI(uri)
	if err != nil {
		return nil, err
	}
	fc, err := s.deps.Gateway.ReadFile(rel)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return nil, mcpsdk.ResourceNotFoundError(uri)
	case err != nil:
		return nil, err
	}

	text := fc.Content
	mimeType := fc.MimeType
	if !fc.IsText {
		text = fmt.Sprintf("Binary file: %s (%d bytes, %s)", fc.Path, fc.Size, fc.MimeType)
		mimeType = "text/plain"
	}
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{
			{URI: uri, MIMEType: mimeType, Text: text},
		},
	}, nil
}

func relFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, fileURIPrefix) {
		return "", fmt.Errorf("%w: unsupported URI scheme: %s", model.ErrInvalidArgument, uri)
	}
	rel, err := url.PathUnescape(strings.TrimPrefix(uri, fileURIPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	return rel, nil
}
