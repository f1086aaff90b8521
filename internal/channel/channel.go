// Package channel implements the two mailboxes carried by the state
// document: selections flowing from the viewer to the agent and navigation
// commands flowing the other way.
package channel

import (
	"time"

	"go.uber.org/zap"

	"ctxview/internal/model"
	"ctxview/internal/statestore"
)

const DefaultPollInterval = 500 * time.Millisecond

type Options struct {
	// PollInterval is the spacing between reads while waiting for a
	// selection. Zero means DefaultPollInterval.
	PollInterval time.Duration
	Recorder     model.Recorder
	Logger       *zap.Logger
	// Now overrides the wall clock in tests.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.Recorder == nil {
		o.Recorder = model.NopRecorder{}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type base struct {
	store *statestore.Store
	opts  Options
}

func (b base) now() float64 { return model.Timestamp(b.opts.Now()) }
