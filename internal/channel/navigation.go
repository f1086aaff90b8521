package channel

import (
	"context"
	"math"

	"go.uber.org/zap"

	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

// minStep keeps consecutive navigation timestamps distinct when the clock
// has not advanced between two publishes.
const minStep = 1e-6

// Navigations carries one pending navigation command from the agent to the
// viewer. The viewer acknowledges by echoing the command's timestamp.
type Navigations struct {
	base
}

func NewNavigations(store *statestore.Store, opts Options) *Navigations {
	return &Navigations{base{store: store, opts: opts.withDefaults()}}
}

// Publish overwrites the pending command. Its timestamp is strictly greater
// than the one it replaces.
func (n *Navigations) Publish(ctx context.Context, kind model.CommandKind, filePath string, target model.Target) (model.NavigationCommand, error) {
	cmd := model.NavigationCommand{
		Command:  kind,
		FilePath: filePath,
		Target:   target,
	}
	if err := cmd.Validate(); err != nil {
		return model.NavigationCommand{}, err
	}
	n.store.Update(func(doc statestore.Document) bool {
		cmd.Timestamp = n.now()
		if prev, ok := doc.Navigation(); ok && cmd.Timestamp <= prev.Timestamp {
			cmd.Timestamp = math.Max(prev.Timestamp+minStep, math.Nextafter(prev.Timestamp, math.Inf(1)))
		}
		doc.SetNavigation(cmd)
		return true
	})
	n.opts.Logger.Debug("navigation published",
		zap.String("command", string(kind)), zap.String("file", filePath), zap.Stringer("target", target))
	n.opts.Recorder.Record(ctx, model.Event{
		Kind:      model.EventNavigationPublished,
		FilePath:  filePath,
		Target:    target.String(),
		Text:      string(kind),
		Timestamp: cmd.Timestamp,
	})
	return cmd, nil
}

// Fetch returns the stored command as-is, executed or not.
func (n *Navigations) Fetch() (*model.NavigationCommand, bool) {
	return n.store.Read().Navigation()
}

// Acknowledge marks the stored command executed if its timestamp equals ts.
// A stale acknowledgement for a command that has since been replaced is a
// no-op.
func (n *Navigations) Acknowledge(ctx context.Context, ts float64) bool {
	var acked *model.NavigationCommand
	n.store.Update(func(doc statestore.Document) bool {
		cmd, ok := doc.Navigation()
		if !ok || cmd.Executed || cmd.Timestamp != ts {
			return false
		}
		cmd.Executed = true
		doc.SetNavigation(*cmd)
		acked = cmd
		return true
	})
	if acked == nil {
		return false
	}
	n.opts.Recorder.Record(ctx, model.Event{
		Kind:      model.EventNavigationAcked,
		FilePath:  acked.FilePath,
		Target:    acked.Target.String(),
		Text:      string(acked.Command),
		Timestamp: n.now(),
	})
	return true
}
