package channel

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

// Selections moves confirmed line ranges from the viewer to the agent. The
// document holds at most one selection; a new one replaces the old.
type Selections struct {
	base
}

func NewSelections(store *statestore.Store, opts Options) *Selections {
	return &Selections{base{store: store, opts: opts.withDefaults()}}
}

// Publish stores a selection stamped with the current time, replacing any
// previous one.
func (s *Selections) Publish(ctx context.Context, filePath string, startLine, endLine int, text string) (model.Selection, error) {
	sel := model.Selection{
		FilePath:     filePath,
		StartLine:    startLine,
		EndLine:      endLine,
		SelectedText: text,
	}
	if err := sel.Validate(); err != nil {
		return model.Selection{}, err
	}
	sel.Timestamp = s.now()
	s.store.Update(func(doc statestore.Document) bool {
		doc.SetSelection(sel)
		return true
	})
	s.opts.Logger.Debug("selection published",
		zap.String("file", filePath), zap.Int("start", startLine), zap.Int("end", endLine))
	s.opts.Recorder.Record(ctx, model.Event{
		Kind:      model.EventSelectionPublished,
		FilePath:  filePath,
		StartLine: startLine,
		EndLine:   endLine,
		Text:      text,
		Timestamp: sel.Timestamp,
	})
	return sel, nil
}

// Get returns the current selection without waiting. With clearAfterRead the
// selection is removed in the same read-modify-write cycle.
func (s *Selections) Get(ctx context.Context, clearAfterRead bool) (*model.Selection, bool) {
	return s.take(ctx, clearAfterRead, math.Inf(-1))
}

// Wait blocks until a selection newer than the moment Wait was called
// appears, the timeout elapses or ctx is done. A timeout is not an error: it
// returns (nil, false, nil).
func (s *Selections) Wait(ctx context.Context, timeout time.Duration, clearAfterRead bool) (*model.Selection, bool, error) {
	if timeout <= 0 {
		return nil, false, fmt.Errorf("%w: timeout must be positive", model.ErrInvalidArgument)
	}
	since := s.now()
	if sel, ok := s.take(ctx, clearAfterRead, since); ok {
		return sel, true, nil
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-deadline.C:
			return nil, false, nil
		case <-ticker.C:
			if sel, ok := s.take(ctx, clearAfterRead, since); ok {
				return sel, true, nil
			}
		}
	}
}

// Clear removes the selection. It reports whether one was present.
func (s *Selections) Clear(ctx context.Context) bool {
	var removed *model.Selection
	s.store.Update(func(doc statestore.Document) bool {
		removed, _ = doc.Selection()
		return doc.DeleteSelection()
	})
	if removed == nil {
		return false
	}
	s.opts.Recorder.Record(ctx, model.Event{
		Kind:      model.EventSelectionCleared,
		FilePath:  removed.FilePath,
		StartLine: removed.StartLine,
		EndLine:   removed.EndLine,
		Timestamp: s.now(),
	})
	return true
}

// take returns the stored selection when its timestamp is strictly greater
// than newerThan, deleting it when consume is set.
func (s *Selections) take(ctx context.Context, consume bool, newerThan float64) (*model.Selection, bool) {
	var found *model.Selection
	s.store.Update(func(doc statestore.Document) bool {
		sel, ok := doc.Selection()
		if !ok || sel.Timestamp <= newerThan {
			return false
		}
		found = sel
		return consume && doc.DeleteSelection()
	})
	if found == nil {
		return nil, false
	}
	if consume {
		s.opts.Recorder.Record(ctx, model.Event{
			Kind:      model.EventSelectionConsumed,
			FilePath:  found.FilePath,
			StartLine: found.StartLine,
			EndLine:   found.EndLine,
			Timestamp: s.now(),
		})
	}
	return found, true
}
