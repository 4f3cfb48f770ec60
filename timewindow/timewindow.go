// Package timewindow switches the viewer between the live feed and an hour of history.
package timewindow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
)

const (
	DefaultInitialCount = 8
	windowSpan          = time.Hour
)

var ErrInvalidWindow = errors.New("invalid time window")

// offsets selectable from the UI, in hours
var offsets = []int{0, 1, 6, 12, 24}

// Window is the viewing offset in hours; zero is live
type Window struct {
	Hours int
}

// Live is the initial window
var Live = Window{}

func (w Window) IsLive() bool { return w.Hours == 0 }

// Label renders the window for the indicator line
func (w Window) Label() string {
	switch {
	case w.Hours == 0:
		return "Live"
	case w.Hours == 24:
		return "Yesterday"
	case w.Hours == 1:
		return "1 hour ago"
	default:
		return fmt.Sprintf("%d hours ago", w.Hours)
	}
}

// Bounds returns the half-open hour window [now-h, now-h+1h)
func (w Window) Bounds(now time.Time) (from, to time.Time) {
	from = now.Add(-time.Duration(w.Hours) * time.Hour)
	return from, from.Add(windowSpan)
}

// Offsets returns the selectable offsets in hours, live first
func Offsets() []int {
	out := make([]int, len(offsets))
	copy(out, offsets)
	return out
}

// Step moves from hours to the neighbouring offset; dir > 0 goes further into the past
func Step(hours, dir int) int {
	idx := 0
	for i, h := range offsets {
		if h <= hours {
			idx = i
		}
	}
	idx += dir
	if idx < 0 {
		idx = 0
	}
	if idx >= len(offsets) {
		idx = len(offsets) - 1
	}
	return offsets[idx]
}

// Pipeline is what the controller drives on a transition
type Pipeline interface {
	Reset()
	Prepopulate(now time.Time, n int)
	DispatchBatch(events []mood.Event)
	Synthesize(start time.Time) []mood.Event
	Range(ctx context.Context, from, to time.Time) ([]mood.Event, error)
	Resume(ctx context.Context) error
	Suspend()
	HasStore() bool
}

type Options struct {
	InitialCount int
	Logger       *slog.Logger
	Now          func() time.Time
}

// Controller owns the current window. It is driven from the owner loop and is not safe
// for concurrent use.
type Controller struct {
	pipeline     Pipeline
	window       Window
	initialCount int
	logger       *slog.Logger
	now          func() time.Time
}

func NewController(p Pipeline, opts Options) *Controller {
	if opts.InitialCount <= 0 {
		opts.InitialCount = DefaultInitialCount
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		pipeline:     p,
		window:       Live,
		initialCount: opts.InitialCount,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

func (c *Controller) Window() Window { return c.window }

// InitialCount is how many events a return to Live prepopulates
func (c *Controller) InitialCount() int { return c.initialCount }

// Label returns the indicator text, e.g. "Viewing: Live"
func (c *Controller) Label() string { return "Viewing: " + c.window.Label() }

// Select switches to the window hours in the past and repopulates it.
// The transition is complete when Select returns.
func (c *Controller) Select(ctx context.Context, hours int) error {
	if hours < 0 {
		return fmt.Errorf("%w: %d hours", ErrInvalidWindow, hours)
	}

	target := Window{Hours: hours}
	c.pipeline.Reset()
	c.window = target

	if target.IsLive() {
		c.goLive(ctx)
		return nil
	}

	c.pipeline.Suspend()
	from, to := target.Bounds(c.now())

	var batch []mood.Event
	if c.pipeline.HasStore() {
		events, err := c.pipeline.Range(ctx, from, to)
		if err != nil {
			c.logger.Warn("history range failed, using synthetic moods", "hours", hours, "error", err)
		}
		batch = events
	}
	if len(batch) == 0 {
		batch = c.pipeline.Synthesize(from)
	}

	c.pipeline.DispatchBatch(batch)
	c.logger.Info("time window selected", "hours", hours, "events", len(batch))
	return nil
}

// Live returns to the live window
func (c *Controller) Live(ctx context.Context) error {
	return c.Select(ctx, 0)
}

// Step moves one offset in dir and selects it
func (c *Controller) Step(ctx context.Context, dir int) error {
	return c.Select(ctx, Step(c.window.Hours, dir))
}

func (c *Controller) goLive(ctx context.Context) {
	c.pipeline.Prepopulate(c.now(), c.initialCount)
	if !c.pipeline.HasStore() {
		return
	}
	if err := c.pipeline.Resume(ctx); err != nil {
		c.logger.Warn("live subscription failed", "error", err)
	}
}
