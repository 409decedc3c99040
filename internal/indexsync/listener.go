// Package indexsync keeps the full-text index in step with job writes made
// by other services. The job service publishes a change event on Redis after
// every create, update, deactivate or delete; the listener applies it.
package indexsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventJobChanged is the only event type the listener consumes.
const EventJobChanged = "EVENT_JOB_CHANGED"

// Actions carried by a job change event.
const (
	ActionUpsert = "upsert"
	ActionDelete = "delete"
)

// Event is the payload of a job change message.
type Event struct {
	Type   string `json:"type"`
	JobID  string `json:"jobId"`
	Action string `json:"action"`
}

// Indexer applies job changes to the index. Both calls are best effort.
type Indexer interface {
	IndexJob(ctx context.Context, jobID string)
	DeleteJob(ctx context.Context, jobID string)
}

// Invalidator drops cached feeds a job change can make stale.
type Invalidator interface {
	InvalidateFeatured(ctx context.Context) error
}

// ErrMalformed is returned by Handle for messages it cannot apply.
var ErrMalformed = errors.New("malformed job change event")

// Listener consumes job change events from one Redis channel.
type Listener struct {
	rdb     *redis.Client
	channel string
	idx     Indexer
	inv     Invalidator
	log     zerolog.Logger
}

// New returns a Listener for channel. inv may be nil.
func New(rdb *redis.Client, channel string, idx Indexer, inv Invalidator, log zerolog.Logger) *Listener {
	return &Listener{rdb: rdb, channel: channel, idx: idx, inv: inv, log: log}
}

// Run subscribes and applies events until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.rdb.Subscribe(ctx, l.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so a bad connection fails fast.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", l.channel, err)
	}
	l.log.Info().Str("channel", l.channel).Msg("listening for job changes")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := l.Handle(ctx, []byte(msg.Payload)); err != nil {
				l.log.Warn().Err(err).Str("payload", msg.Payload).Msg("skipping job change event")
			}
		}
	}
}

// Handle decodes one message and applies it.
func (l *Listener) Handle(ctx context.Context, payload []byte) error {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.Type != EventJobChanged {
		return fmt.Errorf("%w: unexpected type %q", ErrMalformed, ev.Type)
	}
	if _, err := uuid.Parse(ev.JobID); err != nil {
		return fmt.Errorf("%w: job id %q", ErrMalformed, ev.JobID)
	}

	switch ev.Action {
	case ActionUpsert:
		l.idx.IndexJob(ctx, ev.JobID)
	case ActionDelete:
		l.idx.DeleteJob(ctx, ev.JobID)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrMalformed, ev.Action)
	}
	if l.inv != nil {
		if err := l.inv.InvalidateFeatured(ctx); err != nil {
			return fmt.Errorf("job %s applied, featured feed kept: %w", ev.JobID, err)
		}
	}
	l.log.Debug().Str("job_id", ev.JobID).Str("action", ev.Action).Msg("applied job change")
	return nil
}

// Publish sends a job change event on channel. The job service side of the
// contract; also used by tests and the admin tooling.
func Publish(ctx context.Context, rdb *redis.Client, channel string, ev Event) error {
	if ev.Type == "" {
		ev.Type = EventJobChanged
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode job change: %w", err)
	}
	if err := rdb.Publish(ctx, channel, raw).Err(); err != nil {
		return fmt.Errorf("publish job change: %w", err)
	}
	return nil
}
