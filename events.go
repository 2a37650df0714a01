package mailindex

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
)

// Event names for tag events. Each database prefixes them with its bus
// name.
const (
	EventNameTagAdded   = "mailindex.tag.added"
	EventNameTagRemoved = "mailindex.tag.removed"
)

// TagEvent is published after a tag was added to or removed from a
// message.
type TagEvent struct {
	MessageID string    `json:"message_id"`
	ThreadID  string    `json:"thread_id"`
	Tag       string    `json:"tag"`
	Database  string    `json:"database"`
	At        time.Time `json:"at"`
}

// DatabaseEvents holds the events of one open database. Subscribe to them
// through Database.Events.
type DatabaseEvents struct {
	TagAdded   event.Event[TagEvent]
	TagRemoved event.Event[TagEvent]
}

func newDatabaseEvents(namePrefix string) *DatabaseEvents {
	return &DatabaseEvents{
		TagAdded:   event.New[TagEvent](namePrefix + "." + EventNameTagAdded),
		TagRemoved: event.New[TagEvent](namePrefix + "." + EventNameTagRemoved),
	}
}

func registerDatabaseEvents(ctx context.Context, bus *event.Bus, events *DatabaseEvents) error {
	if err := event.Register(ctx, bus, events.TagAdded); err != nil {
		return err
	}
	return event.Register(ctx, bus, events.TagRemoved)
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus creates the database's bus and registers its events.
func (e *env) initEventBus(ctx context.Context) error {
	busName := fmt.Sprintf("%s-%d", e.opts.serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case e.opts.eventTransport != nil:
		e.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(e.opts.eventTransport))
	case e.opts.redisClient != nil:
		e.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(e.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		e.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}
	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}

	events := newDatabaseEvents(busName)
	if err := registerDatabaseEvents(ctx, bus, events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register database events: %w", err)
	}
	e.bus = bus
	e.events = events
	return nil
}

// closeEventBus closes the bus only if it uses a real transport.
func (e *env) closeEventBus(ctx context.Context) error {
	if e.bus == nil || !e.opts.realTransport() {
		return nil
	}
	if err := e.bus.Close(ctx); err != nil {
		return fmt.Errorf("close event bus: %w", err)
	}
	return nil
}

// publishTag publishes a tag event. Failures are returned only when event
// errors are fatal; otherwise they go to the failure handler.
func (e *env) publishTag(ctx context.Context, name string, ev event.Event[TagEvent], payload TagEvent) error {
	err := ev.Publish(ctx, payload)
	if err == nil {
		return nil
	}
	if e.opts.eventErrorsFatal {
		return &EventPublishError{
			Event:     name,
			MessageID: payload.MessageID,
			Tag:       payload.Tag,
			Err:       err,
		}
	}
	e.opts.safeEventPublishFailure(name, err)
	return nil
}
