package telemetry

import (
	"encoding/json"
	"strconv"
	"time"

	"gopkg.in/redis.v3"

	"robocore/host/robot"
)

// DefaultRedisPrefix is prepended to the per-encoder channel name
const DefaultRedisPrefix = "robocore/encoder/"

// redisTimeout bounds each dial, read and write so an unresponsive server
// only delays its own sink.
const redisTimeout = 500 * time.Millisecond

// RedisSink publishes encoder reports as JSON on one Redis channel per
// encoder, e.g. robocore/encoder/0
type RedisSink struct {
	client *redis.Client
	prefix string
}

func NewRedisSink(addr, prefix string) *RedisSink {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisSink{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			DialTimeout:  redisTimeout,
			ReadTimeout:  redisTimeout,
			WriteTimeout: redisTimeout,
		}),
		prefix: prefix,
	}
}

// Channel returns the channel reports of encoder id are published on
func (s *RedisSink) Channel(id int) string {
	return s.prefix + strconv.Itoa(id)
}

func (s *RedisSink) Publish(rep robot.EncoderReport) error {
	msg, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	return s.client.Publish(s.Channel(rep.ID), string(msg)).Err()
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
