// Package authority talks to the external rating service over Redis pub/sub.
package authority

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/razzie/razroom/pkg/razroom"
	"go.uber.org/zap"
)

const (
	ChannelRequests = "rating.requests"
	ChannelResults  = "rating.results"
	ChannelUpdates  = "rating.updates"
)

// Request asks the rating service for the ratings of players in a room.
type Request struct {
	Room    razroom.Ref `json:"room"`
	Players []string    `json:"players"`
}

// Update carries rating points to add, keyed by player id.
type Update struct {
	Room   razroom.Ref        `json:"room"`
	Points map[string]float64 `json:"points"`
}

// UpdateHandler applies an update. Engine.ApplyRatingUpdate fits.
type UpdateHandler func(ctx context.Context, ref razroom.Ref, points map[string]float64) error

type Redis struct {
	client *redis.Client
	prefix string
	log    *zap.Logger
}

var _ razroom.Authority = (*Redis)(nil)

func NewRedis(client *redis.Client, prefix string, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	return &Redis{
		client: client,
		prefix: prefix,
		log:    log,
	}
}

func (r *Redis) channel(name string) string {
	return r.prefix + name
}

func (r *Redis) publish(ctx context.Context, channel string, v any) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel(channel), msg).Err()
}

func (r *Redis) RequestRatings(ctx context.Context, ref razroom.Ref, playerIDs []string) error {
	return r.publish(ctx, ChannelRequests, &Request{Room: ref, Players: playerIDs})
}

func (r *Redis) ReportResult(ctx context.Context, ref razroom.Ref, report *razroom.Report) error {
	return r.publish(ctx, ChannelResults, report)
}

// Listen dispatches rating updates to handler until ctx is done. Malformed
// messages and handler failures are logged and skipped.
func (r *Redis) Listen(ctx context.Context, handler UpdateHandler) error {
	sub := r.client.Subscribe(ctx, r.channel(ChannelUpdates))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel(ChannelUpdates), err)
	}
	r.log.Info("listening for rating updates", zap.String("channel", r.channel(ChannelUpdates)))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var u Update
			if err := json.Unmarshal([]byte(msg.Payload), &u); err != nil {
				r.log.Warn("bad rating update", zap.String("payload", msg.Payload), zap.Error(err))
				continue
			}
			if err := handler(ctx, u.Room, u.Points); err != nil {
				r.log.Error("applying rating update", zap.Stringer("room", u.Room), zap.Error(err))
			}
		}
	}
}
