package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/UTNuclearRobotics/skiros2/internal/logging"
	"github.com/UTNuclearRobotics/skiros2/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultChannel carries the progress events.
const DefaultChannel = "skiros:monitor"

var (
	// ErrPublisherClosed is returned by Publish after Close.
	ErrPublisherClosed = errors.New("progress publisher closed")
	// ErrQueueFull is returned when an event is dropped.
	ErrQueueFull = errors.New("progress queue full")
)

// Publisher implements ports.ProgressPublisher with Redis pub/sub. Events
// are sent from a background goroutine so that Publish never waits on the
// network. The last event of every task is also stored.
type Publisher struct {
	client  *backend.Client
	channel string
	prefix  string
	ttl     time.Duration
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan domain.ProgressEvent
	done   chan struct{}
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) PublisherOption {
	return func(p *Publisher) {
		p.channel = channel
	}
}

// WithPublisherPrefix sets the prefix of the last-event keys.
func WithPublisherPrefix(prefix string) PublisherOption {
	return func(p *Publisher) {
		p.prefix = prefix
	}
}

// WithEventTTL expires the stored last events.
func WithEventTTL(ttl time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.ttl = ttl
	}
}

// WithQueueSize sets how many events may wait to be sent.
func WithQueueSize(n int) PublisherOption {
	return func(p *Publisher) {
		if n > 0 {
			p.queue = make(chan domain.ProgressEvent, n)
		}
	}
}

// WithPublisherLogger sets the logger.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// NewPublisher starts a publisher on client. Close stops it.
func NewPublisher(client *backend.Client, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:  client,
		channel: DefaultChannel,
		prefix:  DefaultPrefix,
		logger:  logging.NewNop(),
		queue:   make(chan domain.ProgressEvent, 256),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

func (p *Publisher) lastKey(taskID int) string {
	return p.prefix + "progress:" + strconv.Itoa(taskID)
}

// Publish queues event. It fails with ErrQueueFull instead of blocking.
func (p *Publisher) Publish(ctx context.Context, event domain.ProgressEvent) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}
	select {
	case p.queue <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (p *Publisher) run() {
	defer close(p.done)
	ctx := context.Background()
	for event := range p.queue {
		if err := p.send(ctx, event); err != nil {
			p.logger.Warn("progress publish failed", "task_id", event.TaskID, "err", err)
		}
	}
}

func (p *Publisher) send(ctx context.Context, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	pipe := p.client.Pipeline()
	pipe.Set(ctx, p.lastKey(event.TaskID), data, p.ttl)
	pipe.Publish(ctx, p.channel, data)
	_, err = pipe.Exec(ctx)
	return err
}

// Last returns the last event sent for taskID.
func (p *Publisher) Last(ctx context.Context, taskID int) (domain.ProgressEvent, error) {
	data, err := p.client.Get(ctx, p.lastKey(taskID)).Bytes()
	if errors.Is(err, backend.Nil) {
		return domain.ProgressEvent{}, fmt.Errorf("%w: %d", domain.ErrTaskNotFound, taskID)
	}
	if err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("failed to get progress: %w", err)
	}
	var event domain.ProgressEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.ProgressEvent{}, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	return event, nil
}

// Subscribe streams the events of the channel until ctx is done.
// Malformed messages are skipped.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan domain.ProgressEvent, error) {
	sub := p.client.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", p.channel, err)
	}

	out := make(chan domain.ProgressEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.ProgressEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					p.logger.Warn("malformed progress message", "err", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close sends the queued events and stops the publisher.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	<-p.done
	return nil
}
