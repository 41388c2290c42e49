package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/proxy-bench/internal/types"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKey = "proxychecker:snapshot"

// RedisReader reads one key. A string key holds a JSON snapshot; a list or
// set key holds one proxy line per member.
type RedisReader struct {
	client *redis.Client
	key    string
}

// OpenRedis connects to location, given as "host:port" or "host:port/key".
func OpenRedis(ctx context.Context, location string) (*RedisReader, error) {
	addr, key := splitRedisLocation(location)

	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
		ReadTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}

	return &RedisReader{client: client, key: key}, nil
}

func splitRedisLocation(location string) (addr, key string) {
	addr, key, found := strings.Cut(location, "/")
	if !found || key == "" {
		key = defaultRedisKey
	}
	return addr, key
}

func (r *RedisReader) Read(ctx context.Context) (*types.ProxyList, error) {
	kind, err := r.client.Type(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis type %s: %w", r.key, err)
	}

	var members []string
	switch kind {
	case "string":
		data, err := r.client.Get(ctx, r.key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, fmt.Errorf("redis key %s: %w", r.key, ErrEmpty)
			}
			return nil, fmt.Errorf("redis get: %w", err)
		}
		return decodeSnapshot(data)
	case "list":
		members, err = r.client.LRange(ctx, r.key, 0, -1).Result()
	case "set":
		members, err = r.client.SMembers(ctx, r.key).Result()
	case "none":
		return nil, fmt.Errorf("redis key %s: %w", r.key, ErrEmpty)
	default:
		return nil, fmt.Errorf("redis key %s has unsupported type %s", r.key, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("redis read %s: %w", r.key, err)
	}

	list := &types.ProxyList{Proxies: make([]types.ProxyEntry, 0, len(members))}
	for _, m := range members {
		if m = strings.TrimSpace(m); m != "" {
			list.Proxies = append(list.Proxies, types.ProxyEntry{Address: m})
		}
	}
	return list, nil
}

func (r *RedisReader) Close() error {
	return r.client.Close()
}
