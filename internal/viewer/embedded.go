package viewer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"ctxview/internal/model"
	"ctxview/internal/statestore"
	"ctxview/internal/web"
)

// EmbeddedLauncher runs the presentation server inside the current process.
type EmbeddedLauncher struct {
	store   *statestore.Store
	server  *web.Server
	watcher *web.StateWatcher
	listen  string
	log     *zap.Logger

	mu      sync.Mutex
	url     string
	cancel  context.CancelFunc
	done    chan error
	stopped bool
}

func NewEmbeddedLauncher(store *statestore.Store, server *web.Server, watcher *web.StateWatcher, listen string, logger *zap.Logger) *EmbeddedLauncher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddedLauncher{
		store:   store,
		server:  server,
		watcher: watcher,
		listen:  listen,
		log:     logger.Named("viewer"),
	}
}

func (l *EmbeddedLauncher) Ensure(_ context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return "", fmt.Errorf("%w: viewer was stopped", model.ErrViewerUnavailable)
	}
	if l.url != "" {
		return l.url, nil
	}

	ln, err := net.Listen("tcp", l.listen)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrViewerUnavailable, err)
	}
	l.url = "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan error, 1)
	go func() {
		err := l.server.Run(ctx, ln, l.watcher)
		if err != nil {
			l.log.Error("embedded viewer stopped", zap.Error(err))
		}
		l.done <- err
	}()

	Announce(l.store, l.url, os.Getpid())
	l.log.Info("embedded viewer listening", zap.String("url", l.url))
	return l.url, nil
}

func (l *EmbeddedLauncher) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	if l.cancel == nil {
		return nil
	}
	l.cancel()
	l.cancel = nil
	Withdraw(l.store, os.Getpid())

	select {
	case err := <-l.done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
