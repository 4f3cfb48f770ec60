// Package kafka is a Mood Store on Kafka topics. Moods and messages are JSON records on a
// single partition so that offsets follow append order.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/lixenwraith/world-mood/logging"
	"github.com/lixenwraith/world-mood/mood"
	"github.com/lixenwraith/world-mood/store"
)

const (
	DefaultMoodTopic    = "world-mood.moods"
	DefaultMessageTopic = "world-mood.messages"

	dialTimeout  = 5 * time.Second
	rangeIdleGap = 500 * time.Millisecond
)

type Config struct {
	Brokers      []string
	MoodTopic    string
	MessageTopic string
	Partition    int
}

// Store encapsulates the writers and the readers opened by subscriptions.
type Store struct {
	cfg Config
	lg  *slog.Logger

	moods    *kafka.Writer
	messages *kafka.Writer

	mu      sync.Mutex
	closed  bool
	readers map[*kafka.Reader]struct{}
}

var _ store.Store = (*Store)(nil)

// New checks that a broker answers and creates the writers
func New(ctx context.Context, cfg Config, lg *slog.Logger) (*Store, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("%w: no brokers provided", store.ErrUnavailable)
	}
	if cfg.MoodTopic == "" {
		cfg.MoodTopic = DefaultMoodTopic
	}
	if cfg.MessageTopic == "" {
		cfg.MessageTopic = DefaultMessageTopic
	}
	if lg == nil {
		lg = logging.Discard()
	}

	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	conn, err := kafka.DialContext(dctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return nil, fmt.Errorf("%w: dial broker %s: %v", store.ErrUnavailable, cfg.Brokers[0], err)
	}
	_ = conn.Close()

	s := &Store{
		cfg: cfg,
		lg:  lg,
		moods: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.MoodTopic,
			Balancer:               fixedPartition(cfg.Partition),
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		messages: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.MessageTopic,
			Balancer:               fixedPartition(cfg.Partition),
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		readers: make(map[*kafka.Reader]struct{}),
	}
	lg.Info("kafka store ready", "brokers", cfg.Brokers, "moodTopic", cfg.MoodTopic, "messageTopic", cfg.MessageTopic)
	return s, nil
}

// fixedPartition routes every record to one partition
type fixedPartition int

func (p fixedPartition) Balance(_ kafka.Message, partitions ...int) int {
	for _, id := range partitions {
		if id == int(p) {
			return id
		}
	}
	return partitions[0]
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// eventMessage builds the record for ev; the key is the mood kind
func eventMessage(ev mood.Event) (kafka.Message, error) {
	value, err := store.EncodeEvent(ev)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.Kind),
		Value: value,
		Time:  ev.Timestamp,
	}, nil
}

func messageMessage(m mood.Message) (kafka.Message, error) {
	value, err := store.EncodeMessage(m)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{Value: value, Time: m.Timestamp}, nil
}

func (s *Store) Append(ctx context.Context, ev mood.Event) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	if err := ev.Validate(); err != nil {
		return err
	}
	ev.Timestamp = mood.TruncateTimestamp(ev.Timestamp)
	if ev.ID == "" {
		ev.ID = store.NewID(ev.Timestamp)
	}
	msg, err := eventMessage(ev)
	if err != nil {
		return err
	}
	if err := s.moods.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write mood: %w", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, m mood.Message) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	m.Timestamp = mood.TruncateTimestamp(m.Timestamp)
	if m.ID == "" {
		m.ID = store.NewID(m.Timestamp)
	}
	msg, err := messageMessage(m)
	if err != nil {
		return err
	}
	if err := s.messages.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (s *Store) newReader(topic string) (*kafka.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   s.cfg.Brokers,
		Topic:     topic,
		Partition: s.cfg.Partition,
		MinBytes:  1,
		MaxBytes:  10e6,
		MaxWait:   200 * time.Millisecond,
	})
	s.readers[r] = struct{}{}
	return r, nil
}

func (s *Store) closeReader(r *kafka.Reader) {
	s.mu.Lock()
	_, ok := s.readers[r]
	delete(s.readers, r)
	s.mu.Unlock()
	if ok {
		_ = r.Close()
	}
}

// follow positions a reader at since and forwards decoded records until ctx ends
func follow[T any](ctx context.Context, s *Store, topic string, since time.Time, decode func([]byte) (T, error), stamp func(T) time.Time) (<-chan T, error) {
	r, err := s.newReader(topic)
	if err != nil {
		return nil, err
	}
	if err := r.SetOffsetAt(ctx, since); err != nil {
		s.closeReader(r)
		return nil, fmt.Errorf("seek %s: %w", topic, err)
	}

	out := make(chan T)
	go func() {
		defer close(out)
		defer s.closeReader(r)

		for {
			msg, err := r.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil && !errors.Is(err, io.EOF) {
					s.lg.Warn("kafka read failed", "topic", topic, "error", err)
				}
				return
			}
			v, err := decode(msg.Value)
			if err != nil {
				s.lg.Error("bad record json", "topic", topic, "offset", msg.Offset, "error", err)
				continue
			}
			if stamp(v).Before(since) {
				continue
			}
			select {
			case out <- v:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (s *Store) Subscribe(ctx context.Context, since time.Time) (<-chan mood.Event, error) {
	return follow(ctx, s, s.cfg.MoodTopic, since, store.DecodeEvent, func(ev mood.Event) time.Time { return ev.Timestamp })
}

func (s *Store) SubscribeMessages(ctx context.Context, since time.Time) (<-chan mood.Message, error) {
	return follow(ctx, s, s.cfg.MessageTopic, since, store.DecodeMessage, func(m mood.Message) time.Time { return m.Timestamp })
}

// Range reads from the offset at from up to the current end of the partition
func (s *Store) Range(ctx context.Context, from, to time.Time) ([]mood.Event, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}

	conn, err := kafka.DialLeader(ctx, "tcp", s.cfg.Brokers[0], s.cfg.MoodTopic, s.cfg.Partition)
	if err != nil {
		return nil, fmt.Errorf("%w: dial leader: %v", store.ErrUnavailable, err)
	}
	last, err := conn.ReadLastOffset()
	_ = conn.Close()
	if err != nil {
		return nil, fmt.Errorf("read last offset: %w", err)
	}

	r, err := s.newReader(s.cfg.MoodTopic)
	if err != nil {
		return nil, err
	}
	defer s.closeReader(r)
	if err := r.SetOffsetAt(ctx, from); err != nil {
		return nil, fmt.Errorf("seek %s: %w", s.cfg.MoodTopic, err)
	}

	var out []mood.Event
	for {
		rctx, cancel := context.WithTimeout(ctx, rangeIdleGap)
		msg, err := r.ReadMessage(rctx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return out, nil
			}
			return out, fmt.Errorf("read %s: %w", s.cfg.MoodTopic, err)
		}

		ev, err := store.DecodeEvent(msg.Value)
		if err == nil && !ev.Timestamp.Before(from) && ev.Timestamp.Before(to) {
			out = append(out, ev)
		}
		if msg.Offset >= last-1 {
			return out, nil
		}
	}
}

func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	readers := s.readers
	s.readers = map[*kafka.Reader]struct{}{}
	s.mu.Unlock()

	for r := range readers {
		_ = r.Close()
	}
	return errors.Join(s.moods.Close(), s.messages.Close())
}
