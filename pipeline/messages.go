package pipeline

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
)

const DefaultMessageLookback = 10 * time.Minute

// MessageStore is the subset of a store backend the messenger consumes
type MessageStore interface {
	AppendMessage(ctx context.Context, msg mood.Message) error
	SubscribeMessages(ctx context.Context, since time.Time) (<-chan mood.Message, error)
}

type MessengerOptions struct {
	Store           MessageStore
	Locator         LocationProvider
	Logger          *slog.Logger
	LocationTimeout time.Duration
	Lookback        time.Duration
	Size            int
	Rand            *rand.Rand
	Now             func() time.Time
	Go              func(fn func())
}

// Messenger posts anonymous messages and collects the ones shared by others
type Messenger struct {
	feed    *MessageFeed
	store   MessageStore
	locator LocationProvider
	logger  *slog.Logger

	locationTimeout time.Duration
	lookback        time.Duration
	rng             *rand.Rand
	now             func() time.Time
	launch          func(fn func())

	results chan mood.Message
}

func NewMessenger(opts MessengerOptions) *Messenger {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.LocationTimeout <= 0 {
		opts.LocationTimeout = DefaultLocationTimeout
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultMessageLookback
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(time.Now().UnixNano())
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Go == nil {
		opts.Go = goroutine
	}
	return &Messenger{
		feed:            NewMessageFeed(opts.Size),
		store:           opts.Store,
		locator:         opts.Locator,
		logger:          opts.Logger,
		locationTimeout: opts.LocationTimeout,
		lookback:        opts.Lookback,
		rng:             opts.Rand,
		now:             opts.Now,
		launch:          opts.Go,
		results:         make(chan mood.Message, 4),
	}
}

func (m *Messenger) Feed() *MessageFeed { return m.feed }

// Post validates text, then resolves a location in the background and posts to Results
func (m *Messenger) Post(ctx context.Context, text string) error {
	if _, err := mood.NewMessage(text, mood.Location{}, m.now()); err != nil {
		return err
	}

	m.launch(func() {
		loc, err := ResolveLocation(ctx, m.locator, m.locationTimeout, m.rng)
		if err != nil {
			m.logger.Debug("location fallback", "location", loc.Name, "reason", err)
		}
		msg, err := mood.NewMessage(text, loc, m.now())
		if err != nil {
			return
		}
		select {
		case m.results <- msg:
		case <-ctx.Done():
		}
	})
	return nil
}

func (m *Messenger) Results() <-chan mood.Message { return m.results }

// Apply shows a locally posted message and persists it
func (m *Messenger) Apply(msg mood.Message) {
	m.feed.Add(msg)
	if m.store == nil {
		return
	}
	m.launch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultStoreTimeout)
		defer cancel()
		if err := m.store.AppendMessage(ctx, msg); err != nil {
			m.logger.Warn("message append failed", "error", err)
		}
	})
}

// Receive shows a message delivered by the store; local echoes are dropped
func (m *Messenger) Receive(msg mood.Message) bool {
	msg.Timestamp = mood.TruncateTimestamp(msg.Timestamp)
	return m.feed.Add(msg)
}

// Subscribe opens the store subscription for messages since now minus the lookback
func (m *Messenger) Subscribe(ctx context.Context) (<-chan mood.Message, error) {
	if m.store == nil {
		return nil, ErrNoStore
	}
	return m.store.SubscribeMessages(ctx, m.now().Add(-m.lookback))
}
