// Package runlock 提供基于 Redis 的按描述符互斥锁，
// 防止同一技术组合的多个生成流程并发执行。
package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"blueprint-forge/internal/model"
)

// ErrHeld 表示锁已被其他流程持有
var ErrHeld = errors.New("run already in progress for descriptor")

const keyPrefix = "blueprint-forge:run:"

// Locker 按描述符获取运行锁
type Locker struct {
	client *redis.Client
	ttl    time.Duration
}

// New 创建 Locker，url 为 redis 连接串（如 redis://localhost:6379/0）
func New(url string, ttl time.Duration) (*Locker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Locker{client: redis.NewClient(opts), ttl: ttl}, nil
}

// Key 返回描述符对应的锁键
func Key(d model.TechnologyDescriptor) string {
	return keyPrefix + d.Key()
}

// Acquire 尝试获取锁，已被持有时返回 ErrHeld
func (l *Locker) Acquire(ctx context.Context, d model.TechnologyDescriptor) error {
	ok, err := l.client.SetNX(ctx, Key(d), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

// Release 释放锁，键不存在时视为成功
func (l *Locker) Release(ctx context.Context, d model.TechnologyDescriptor) error {
	if err := l.client.Del(ctx, Key(d)).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

// Close 关闭底层连接
func (l *Locker) Close() error {
	return l.client.Close()
}
