// Package bridge republishes traffic between a Redis pub/sub deployment
// and a serial pub/sub Node, so topics on the wire and channels in Redis
// can mirror each other across a process boundary.
package bridge

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/librescoot/serialpubsub/pkg/node"
)

// Client wraps the Redis client operations the bridge needs, grounded on
// the teacher's pkg/redis/client.go (New/Subscribe/Publish).
type Client struct {
	rdb *redis.Client
	ctx context.Context
}

// NewClient connects to a Redis instance at addr, verifying reachability
// with a PING the same way the teacher's redis.New does.
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("bridge: connect to redis: %w", err)
	}
	return &Client{rdb: rdb, ctx: ctx}, nil
}

// Close closes the underlying Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Subscribe subscribes to a Redis channel and returns a channel of
// messages plus a function to stop the subscription.
func (c *Client) Subscribe(channel string) (<-chan *redis.Message, func()) {
	pubsub := c.rdb.Subscribe(c.ctx, channel)
	return pubsub.Channel(), func() { pubsub.Close() }
}

// Publish publishes message to a Redis channel.
func (c *Client) Publish(channel, message string) error {
	return c.rdb.Publish(c.ctx, channel, message).Err()
}

// Mapping pairs a Redis channel with the Node topic it mirrors.
type Mapping struct {
	RedisChannel string
	NodeTopic    string
}

// Subscriber is the subset of Client that RedisToNode needs; it exists so
// tests can substitute a fake instead of a live Redis connection.
type Subscriber interface {
	Subscribe(channel string) (<-chan *redis.Message, func())
}

// Publisher is the subset of Client that NodeToRedis needs.
type Publisher interface {
	Publish(channel, message string) error
}

// RedisToNode subscribes to every Redis channel in mappings and, for each
// message received, publishes its payload on the mapped Node topic. Each
// subscription runs its own goroutine ranging over the channel's message
// stream, the same shape as the teacher's SubscribeToRedisChannels.
//
// When ackTimeout is > 0, each forwarded message is sent as a PUBLISH via
// PublishWait and the bridge waits up to ackTimeout for the serial peer to
// acknowledge it, logging a warning on timeout; ackTimeout <= 0 falls back
// to a fire-and-forget BROADCAST via Publish. Returns a function that
// stops all subscriptions.
func RedisToNode(client Subscriber, n *node.Node, mappings []Mapping, ackTimeout time.Duration) func() {
	stops := make([]func(), 0, len(mappings))
	for _, m := range mappings {
		ch, stop := client.Subscribe(m.RedisChannel)
		stops = append(stops, stop)
		go func(m Mapping, ch <-chan *redis.Message) {
			for msg := range ch {
				if ackTimeout > 0 {
					resp, err := n.PublishWait(m.NodeTopic, []byte(msg.Payload), ackTimeout)
					if err != nil {
						log.Printf("bridge: publish-wait %s from redis channel %s: %v", m.NodeTopic, m.RedisChannel, err)
						continue
					}
					if resp != node.ResponseSuccess {
						log.Printf("bridge: publish-wait %s from redis channel %s: no ack within %s", m.NodeTopic, m.RedisChannel, ackTimeout)
					}
					continue
				}
				if err := n.Publish(m.NodeTopic, []byte(msg.Payload)); err != nil {
					log.Printf("bridge: publish %s from redis channel %s: %v", m.NodeTopic, m.RedisChannel, err)
				}
			}
		}(m, ch)
	}
	return func() {
		for _, stop := range stops {
			stop()
		}
	}
}

// NodeToRedis subscribes to every Node topic in mappings and republishes
// received payloads on the mapped Redis channel. Returns a function that
// unsubscribes from all of them.
func NodeToRedis(client Publisher, n *node.Node, mappings []Mapping) func() {
	ids := make([]uint32, 0, len(mappings))
	for _, m := range mappings {
		m := m
		id, err := n.Subscribe(m.NodeTopic, func(data []byte) {
			if err := client.Publish(m.RedisChannel, string(data)); err != nil {
				log.Printf("bridge: publish redis channel %s from node topic %s: %v", m.RedisChannel, m.NodeTopic, err)
			}
		})
		if err != nil {
			log.Printf("bridge: subscribe to node topic %s: %v", m.NodeTopic, err)
			continue
		}
		ids = append(ids, id)
	}
	return func() {
		for _, id := range ids {
			_ = n.Unsubscribe(id)
		}
	}
}
