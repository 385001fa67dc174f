/*
 * @module service/predlog/redis_store
 * @description 预测/反馈日志的Redis实现,使用SET EX保留TTL语义,LPUSH+LTRIM维护近期窗口
 * @architecture 适配器模式 - 封装第三方Redis客户端
 * @stateFlow 连接建立 -> 写入/读取 -> TTL自动过期
 * @rules 键统一带govengine前缀,近期窗口长度有界并随窗口时长过期
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/predlog/store.go, service/init.go
 */

package predlog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	keyPrefix = "govengine:"
	recentKey = "govengine:recent"
)

// RedisStore 基于Redis的日志存储
type RedisStore struct {
	client    *redis.Client
	maxRecent int64
	recentTTL time.Duration
}

// NewRedisStore 创建Redis日志存储,从环境变量读取连接配置
func NewRedisStore(maxRecent int, recentTTL time.Duration) (*RedisStore, error) {
	host := getEnvWithDefault("REDIS_HOST", "localhost")
	port := getEnvWithDefault("REDIS_PORT", "6379")
	password := os.Getenv("REDIS_PASSWORD")
	db := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		fmt.Sscanf(dbStr, "%d", &db)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis连接失败: %w", err)
	}

	slog.Info("预测日志Redis存储初始化成功", "redis_host", host, "redis_port", port)

	return &RedisStore{
		client:    client,
		maxRecent: int64(maxRecent),
		recentTTL: recentTTL,
	}, nil
}

// Put 写入带TTL的条目
func (r *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("写入日志条目失败: %w", err)
	}
	return nil
}

// Get 读取条目
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("读取日志条目失败: %w", err)
	}
	return val, true, nil
}

// AppendRecent 追加条目到近期窗口列表
func (r *RedisStore) AppendRecent(ctx context.Context, value []byte) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, recentKey, value)
	pipe.LTrim(ctx, recentKey, 0, r.maxRecent-1)
	pipe.Expire(ctx, recentKey, r.recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("追加近期窗口失败: %w", err)
	}
	return nil
}

// Recent 返回近期窗口条目
func (r *RedisStore) Recent(ctx context.Context, limit int) ([][]byte, error) {
	if limit <= 0 || int64(limit) > r.maxRecent {
		limit = int(r.maxRecent)
	}
	vals, err := r.client.LRange(ctx, recentKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("读取近期窗口失败: %w", err)
	}
	out := make([][]byte, 0, len(vals))
	for _, v := range vals {
		out = append(out, []byte(v))
	}
	return out, nil
}

// Close 关闭Redis连接
func (r *RedisStore) Close() error {
	return r.client.Close()
}

func getEnvWithDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}
