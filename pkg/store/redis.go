package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-redis/redis/v8"
)

// Redis stores each document as one hash; every path is a hash field holding
// a JSON value. Array and subtree operations run as scripts so they stay
// atomic on the field they touch.
type Redis struct {
	client *redis.Client
	prefix string
}

var (
	appendScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur or cur == '[]' then
	redis.call('HSET', KEYS[1], ARGV[1], '[' .. ARGV[2] .. ']')
	return 1
end
if string.sub(cur, 1, 1) ~= '[' then
	return redis.error_reply('NOTARRAY')
end
redis.call('HSET', KEYS[1], ARGV[1], string.sub(cur, 1, -2) .. ',' .. ARGV[2] .. ']')
return #cjson.decode(cur) + 1
`)

	lenScript = redis.NewScript(`
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then
	return 0
end
if string.sub(cur, 1, 1) ~= '[' then
	return redis.error_reply('NOTARRAY')
end
return #cjson.decode(cur)
`)

	deleteScript = redis.NewScript(`
local n = 0
local prefix = ARGV[1] .. '.'
for _, f in ipairs(redis.call('HKEYS', KEYS[1])) do
	if f == ARGV[1] or string.sub(f, 1, #prefix) == prefix then
		redis.call('HDEL', KEYS[1], f)
		n = n + 1
	end
end
return n
`)
)

func NewRedis(redisURL, prefix string) (*Redis, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisFromClient(client, prefix), nil
}

func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) key(doc string) string {
	return r.prefix + doc
}

func (r *Redis) Get(ctx context.Context, doc, path string) (json.RawMessage, bool, error) {
	v, err := r.client.HGet(ctx, r.key(doc), path).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return json.RawMessage(v), true, nil
}

func (r *Redis) Set(ctx context.Context, doc, path string, value json.RawMessage) error {
	return r.client.HSet(ctx, r.key(doc), path, string(value)).Err()
}

func (r *Redis) SetIfAbsent(ctx context.Context, doc, path string, value json.RawMessage) (bool, error) {
	return r.client.HSetNX(ctx, r.key(doc), path, string(value)).Result()
}

func (r *Redis) Increment(ctx context.Context, doc, path string, delta float64) (float64, error) {
	v, err := r.client.HIncrByFloat(ctx, r.key(doc), path, delta).Result()
	if err != nil && strings.Contains(err.Error(), "not a") {
		return 0, ErrNotNumber
	}
	return v, err
}

func (r *Redis) Append(ctx context.Context, doc, path string, value json.RawMessage) (int, error) {
	n, err := appendScript.Run(ctx, r.client, []string{r.key(doc)}, path, string(value)).Int()
	return n, scriptErr(err)
}

func (r *Redis) Delete(ctx context.Context, doc, path string) error {
	if path == "" {
		return r.client.Del(ctx, r.key(doc)).Err()
	}
	return deleteScript.Run(ctx, r.client, []string{r.key(doc)}, path).Err()
}

func (r *Redis) Exists(ctx context.Context, doc, path string) (bool, error) {
	if path == "" {
		n, err := r.client.Exists(ctx, r.key(doc)).Result()
		return n > 0, err
	}
	return r.client.HExists(ctx, r.key(doc), path).Result()
}

func (r *Redis) Len(ctx context.Context, doc, path string) (int, error) {
	n, err := lenScript.Run(ctx, r.client, []string{r.key(doc)}, path).Int()
	return n, scriptErr(err)
}

func scriptErr(err error) error {
	if err == nil || errors.Is(err, redis.Nil) {
		return err
	}
	if strings.Contains(err.Error(), "NOTARRAY") {
		return ErrNotArray
	}
	return err
}
