// Package app runs the terminal globe: one goroutine owns the particle engine, the pipeline
// and the time window, and everything else reaches it through channels.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lixenwraith/world-mood/audio"
	"github.com/lixenwraith/world-mood/config"
	"github.com/lixenwraith/world-mood/engine"
	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/pipeline"
	"github.com/lixenwraith/world-mood/render"
	"github.com/lixenwraith/world-mood/store"
	"github.com/lixenwraith/world-mood/timewindow"
)

const (
	HighlightDuration = 1500 * time.Millisecond
	rotateStep        = 0.08
	dragSpeedX        = 0.02
	dragSpeedY        = 0.04
	maxInput          = 280
)

var errQuit = errors.New("quit")

type Options struct {
	Config  *config.Config
	Screen  tcell.Screen // initialized by the caller
	Store   store.Store  // nil runs in demo mode
	Locator pipeline.LocationProvider
	Sound   *audio.SoundManager // nil is silent
	Logger  *slog.Logger
	Clock   engine.TimeProvider // base for animation time; nil is monotonic
	Now     func() time.Time    // wall time for event stamps; nil is time.Now
	Session string              // stamped into Event.Origin; empty generates one
}

type App struct {
	cfg    *config.Config
	screen tcell.Screen
	lg     *slog.Logger
	now    func() time.Time

	scene     *render.TerminalScene
	clock     *engine.PausableClock
	particles *engine.ParticleEngine
	pipeline  *pipeline.Pipeline
	messenger *pipeline.Messenger
	windows   *timewindow.Controller
	sound     *audio.SoundManager
	hasStore  bool

	events chan tcell.Event

	// Owned by the loop goroutine
	rotX, rotY     float64
	dragging       bool
	dragX, dragY   int
	highlight      mood.Kind
	highlightUntil time.Time
	editing        bool
	input          []rune
	status         string
	started        bool
	simulating     bool
}

func New(opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, errors.New("app: config is required")
	}
	if opts.Screen == nil {
		return nil, errors.New("app: screen is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}
	cfg := opts.Config

	a := &App{
		cfg:      cfg,
		screen:   opts.Screen,
		lg:       opts.Logger.With("session", opts.Session),
		now:      opts.Now,
		clock:    engine.NewPausableClock(opts.Clock),
		sound:    opts.Sound,
		hasStore: opts.Store != nil,
		events:   make(chan tcell.Event, 100),
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := pipeline.NewRand(seed)

	a.scene = render.NewTerminalScene(opts.Screen, cfg.Globe.Stars, seed)
	pcfg := engine.DefaultParticleConfig()
	pcfg.MaxParticles = cfg.Globe.MaxParticles
	a.particles = engine.NewParticleEngine(a.scene, a.scene.Root(), pcfg, a.clock)

	popts := pipeline.Options{
		Spawner:         a.particles,
		Locator:         opts.Locator,
		Logger:          a.lg,
		LocationTimeout: cfg.Location.Timeout,
		Lookback:        cfg.History.Lookback,
		FeedSize:        cfg.Feed.Size,
		Origin:          opts.Session,
		Rand:            rng,
		Now:             opts.Now,
		Go:              Go,
	}
	mopts := pipeline.MessengerOptions{
		Locator:         opts.Locator,
		Logger:          a.lg,
		LocationTimeout: cfg.Location.Timeout,
		Lookback:        cfg.Feed.MessageLookback,
		Size:            cfg.Feed.Messages,
		Rand:            rng,
		Now:             opts.Now,
		Go:              Go,
	}
	// Typed nils must not reach the optional interfaces
	if opts.Store != nil {
		popts.Store = opts.Store
		mopts.Store = opts.Store
	}
	if opts.Sound != nil {
		popts.Chimer = opts.Sound
	}

	p, err := pipeline.New(popts)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	a.pipeline = p
	a.messenger = pipeline.NewMessenger(mopts)
	a.windows = timewindow.NewController(p, timewindow.Options{
		InitialCount: cfg.Simulation.InitialCount,
		Logger:       a.lg,
		Now:          opts.Now,
	})

	if !a.hasStore {
		a.status = "demo mode"
	}
	return a, nil
}

// Run drives the globe until ctx ends or the user quits
func (a *App) Run(ctx context.Context) error {
	registerCrashScreen(a.screen)
	defer registerCrashScreen(nil)
	a.screen.EnableMouse()
	a.screen.HideCursor()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer recoverCrash()
		return a.poll(gctx)
	})
	g.Go(func() error {
		defer recoverCrash()
		// Cancel first, then wake the poller so it sees the cancellation
		defer a.screen.PostEvent(tcell.NewEventInterrupt(nil))
		defer cancel()
		return a.loop(gctx)
	})

	err := g.Wait()
	a.pipeline.Suspend()
	a.particles.Clear()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) poll(ctx context.Context) error {
	for {
		ev := a.screen.PollEvent()
		if ev == nil || ctx.Err() != nil {
			return nil
		}
		select {
		case a.events <- ev:
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *App) loop(ctx context.Context) error {
	fps := a.cfg.Globe.FPS
	frame := time.NewTicker(time.Second / time.Duration(fps))
	defer frame.Stop()

	startTimer := time.NewTimer(a.cfg.Simulation.StartDelay)
	defer startTimer.Stop()

	var (
		simStart  <-chan time.Time
		simTick   <-chan time.Time
		simTicker *time.Ticker
		messages  <-chan mood.Message
	)
	defer func() {
		if simTicker != nil {
			simTicker.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-a.events:
			if err := a.handleEvent(ctx, ev); err != nil {
				return err
			}

		case <-frame.C:
			a.frame()

		case <-startTimer.C:
			messages = a.start(ctx)
			if !a.hasStore && a.cfg.Simulation.Enabled {
				simStart = time.After(a.cfg.Simulation.StartGap)
			}

		case <-simStart:
			simStart = nil
			simTicker = time.NewTicker(a.cfg.Simulation.Interval)
			simTick = simTicker.C
			a.simulating = true

		case <-simTick:
			a.simulate()

		case sel := <-a.pipeline.Results():
			a.pipeline.Apply(sel)

		case d := <-a.pipeline.Remote():
			a.pipeline.Deliver(d)

		case msg := <-a.messenger.Results():
			a.messenger.Apply(msg)

		case msg, ok := <-messages:
			if !ok {
				messages = nil
				continue
			}
			a.messenger.Receive(msg)
		}
	}
}

// start populates the globe once the start delay has passed. Store mode subscribes
// to recent moods and messages; demo mode prepopulates.
func (a *App) start(ctx context.Context) <-chan mood.Message {
	a.started = true
	if !a.hasStore {
		n := a.windows.InitialCount()
		a.pipeline.Prepopulate(a.now(), n)
		a.lg.Info("demo mode started", "initial", n)
		return nil
	}

	if err := a.pipeline.Resume(ctx); err != nil {
		a.lg.Warn("mood subscription failed", "error", err)
		a.status = "store unavailable"
	}
	msgs, err := a.messenger.Subscribe(ctx)
	if err != nil {
		a.lg.Warn("message subscription failed", "error", err)
		return nil
	}
	return msgs
}

// simulate adds one demo mood while the live window is showing and time is running
func (a *App) simulate() {
	if !a.windows.Window().IsLive() || a.clock.IsPaused() {
		return
	}
	a.pipeline.Simulate(a.now())
}

func (a *App) frame() {
	now := a.clock.Now()
	if !a.dragging && !a.clock.IsPaused() {
		a.rotY = math.Mod(a.rotY+a.cfg.Globe.AutoRotate, 2*math.Pi)
	}
	a.particles.Tick(now)
	a.scene.SetRotation(a.rotX, a.rotY)
	a.scene.SetOverlay(a.hud())
	a.scene.RenderFrame()
}

func (a *App) hud() *render.HUD {
	wall := a.now()
	if !a.highlight.IsValid() || !wall.Before(a.highlightUntil) {
		a.highlight = ""
	}
	status := a.status
	if !a.started {
		status = "loading"
	}
	return &render.HUD{
		Window:    a.windows.Label(),
		Live:      a.windows.Window().IsLive(),
		Paused:    a.clock.IsPaused(),
		Status:    status,
		Stats:     a.pipeline.Stats().Snapshot(),
		Feed:      a.pipeline.Feed().Items(),
		Messages:  a.messenger.Feed().Items(),
		Highlight: a.highlight,
		Editing:   a.editing,
		Input:     string(a.input),
		Now:       wall,
	}
}

// selectMood shares a mood from this user
func (a *App) selectMood(ctx context.Context, k mood.Kind) {
	if err := a.pipeline.Select(ctx, k); err != nil {
		a.lg.Warn("mood selection rejected", "kind", string(k), "error", err)
		return
	}
	a.highlight = k
	a.highlightUntil = a.now().Add(HighlightDuration)
}

func (a *App) stepWindow(ctx context.Context, dir int) {
	if err := a.windows.Step(ctx, dir); err != nil {
		a.lg.Warn("time window change failed", "error", err)
	}
}

func (a *App) rotate(dx, dy float64) {
	a.rotY = math.Mod(a.rotY+dx, 2*math.Pi)
	limit := a.cfg.Globe.MaxTilt
	a.rotX = math.Max(-limit, math.Min(limit, a.rotX+dy))
}
