package mcp

import (
	"context"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"ctxview/internal/channel"
	"ctxview/internal/files"
	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

const (
	ServerName = "ctxview"

	defaultWaitTimeout  = 60 * time.Second
	maxWaitTimeout      = 24 * time.Hour
	defaultHistoryLimit = 10
	maxHistoryLimit     = 100
)

// Deps are the collaborators the tool surface drives.
type Deps struct {
	Gateway     *files.Gateway
	Store       *statestore.Store
	Selections  *channel.Selections
	Navigations *channel.Navigations
	Launcher    model.Launcher
	// History is optional; selection_history reports it as disabled when nil.
	History model.EventLister
	Logger  *zap.Logger
	Version string
	// ViewerURL is used for links when no running viewer is announced.
	ViewerURL   string
	WaitTimeout time.Duration
}

// Server exposes files, selections and navigation to an agent over MCP.
type Server struct {
	deps Deps
	log  *zap.Logger
	mcp  *mcpsdk.Server
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.WaitTimeout <= 0 {
		deps.WaitTimeout = defaultWaitTimeout
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	s := &Server{
		deps: deps,
		log:  deps.Logger.Named("mcp"),
	}
	s.mcp = mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    ServerName,
		Version: deps.Version,
	}, nil)

	s.registerTools()
	s.registerPrompts()
	s.registerResources()
	return s
}

// Run serves on stdio until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("mcp server starting", zap.String("root", s.deps.Gateway.Root()))
	defer s.log.Info("mcp server stopped")
	return s.mcp.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect attaches the server to an arbitrary transport.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}

// viewerURL prefers the announced server over the configured address.
func (s *Server) viewerURL() string {
	if s.deps.Store != nil {
		if info, ok := s.deps.Store.Read().Server(); ok && info.URL != "" {
			return info.URL
		}
	}
	return s.deps.ViewerURL
}
