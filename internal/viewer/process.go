package viewer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

const (
	defaultStartTimeout = 10 * time.Second
	defaultPollInterval = 150 * time.Millisecond
	stopGrace           = 4 * time.Second
)

// ProcessOptions describe how to spawn a detached server.
type ProcessOptions struct {
	// Executable defaults to the running binary.
	Executable string
	Args       []string
	// Env is appended to the current environment.
	Env          []string
	LogFile      string
	StartTimeout time.Duration
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// ProcessLauncher reuses a live server announced in the state document or
// starts one as a child process.
type ProcessLauncher struct {
	store *statestore.Store
	opts  ProcessOptions
	log   *zap.Logger

	mu     sync.Mutex
	child  *os.Process
	exited chan struct{}
}

func NewProcessLauncher(store *statestore.Store, opts ProcessOptions) *ProcessLauncher {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = defaultStartTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: healthTimeout}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ProcessLauncher{store: store, opts: opts, log: opts.Logger.Named("viewer")}
}

func (l *ProcessLauncher) Ensure(ctx context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if info, ok := Lookup(l.store); ok && Healthy(ctx, l.opts.HTTPClient, info.URL) {
		return info.URL, nil
	}

	pid, exited, err := l.spawn()
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrViewerUnavailable, err)
	}
	l.log.Info("viewer process started", zap.Int("pid", pid), zap.String("log", l.opts.LogFile))

	url, err := l.awaitReady(ctx, pid, exited)
	if err != nil {
		_ = l.terminate(pid, exited)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: %v", model.ErrViewerUnavailable, err)
	}
	return url, nil
}

// Stop terminates the server only if this launcher started it.
func (l *ProcessLauncher) Stop(_ context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.child == nil {
		return nil
	}
	pid, exited := l.child.Pid, l.exited
	err := l.terminate(pid, exited)
	Withdraw(l.store, pid)
	l.log.Info("viewer process stopped", zap.Int("pid", pid))
	return err
}

func (l *ProcessLauncher) spawn() (int, <-chan struct{}, error) {
	exe := l.opts.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return 0, nil, err
		}
		exe = self
	}

	cmd := exec.Command(exe, l.opts.Args...)
	cmd.Env = append(os.Environ(), l.opts.Env...)
	var logFile *os.File
	if l.opts.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(l.opts.LogFile), 0o700); err != nil {
			return 0, nil, err
		}
		f, err := os.OpenFile(l.opts.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return 0, nil, err
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}
	detach(cmd)

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return 0, nil, err
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		if logFile != nil {
			_ = logFile.Close()
		}
		close(exited)
	}()
	l.child = cmd.Process
	l.exited = exited
	return cmd.Process.Pid, exited, nil
}

// awaitReady polls until the child has announced itself and answers
// /healthz.
func (l *ProcessLauncher) awaitReady(ctx context.Context, pid int, exited <-chan struct{}) (string, error) {
	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(l.opts.StartTimeout)
	defer deadline.Stop()

	for {
		if info, ok := l.store.Read().Server(); ok && info.PID == pid && Healthy(ctx, l.opts.HTTPClient, info.URL) {
			return info.URL, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-exited:
			return "", fmt.Errorf("viewer process %d exited during startup; see %s", pid, l.opts.LogFile)
		case <-deadline.C:
			return "", fmt.Errorf("viewer did not become ready within %s", l.opts.StartTimeout)
		case <-ticker.C:
		}
	}
}

func (l *ProcessLauncher) terminate(pid int, exited <-chan struct{}) error {
	defer func() { l.child = nil }()
	select {
	case <-exited:
		return nil
	default:
	}
	if err := interrupt(pid); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	select {
	case <-exited:
		return nil
	case <-time.After(stopGrace):
	}
	if l.child != nil {
		if err := l.child.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	select {
	case <-exited:
		return nil
	case <-time.After(2 * time.Second):
		return fmt.Errorf("process %d did not terminate within timeout", pid)
	}
}
