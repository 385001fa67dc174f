/*
 * @module service/predlog/store
 * @description 预测/反馈日志存储接口,基于TTL的追加型键值存储加近期窗口列表
 * @architecture 适配器模式 - 统一存储接口,Redis与内存两种实现
 * @stateFlow 写入(带TTL) -> 读取/过期 -> 近期窗口查询
 * @rules 仅追加和过期,引擎不修改已写入条目;写入失败由调用方按软失败处理
 * @dependencies github.com/go-redis/redis/v8
 * @refs service/engine/engine.go, service/engine/feedback_loop.go, service/engine/drift_monitor.go
 */

package predlog

import (
	"context"
	"time"
)

// Store 追加型TTL存储接口
type Store interface {
	// Put 写入带TTL的条目
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get 读取条目,未找到或已过期时第二个返回值为false
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// AppendRecent 追加条目到近期窗口
	AppendRecent(ctx context.Context, value []byte) error
	// Recent 返回近期窗口条目,最新在前
	Recent(ctx context.Context, limit int) ([][]byte, error)
	// Close 释放底层资源
	Close() error
}
