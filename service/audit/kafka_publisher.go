/*
 * @module service/audit/kafka_publisher
 * @description 决策审计事件发布器,将治理决策以尽力而为方式写入Kafka供下游分析
 * @architecture 适配器模式 - 封装第三方Kafka客户端
 * @stateFlow 决策产生 -> 异步发布 -> 失败计数(不影响响应路径)
 * @rules 未配置Broker时为空操作;发布失败仅记录日志与指标,绝不向调用方传播
 * @dependencies github.com/segmentio/kafka-go, encoding/json
 * @refs service/engine/engine.go, service/init.go
 */

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// DecisionEvent 决策审计事件
type DecisionEvent struct {
	RequestID    string    `json:"request_id"`
	Decision     string    `json:"decision"`
	Confidence   float64   `json:"confidence"`
	ModelVersion string    `json:"model_version"`
	ModelType    string    `json:"model_type"`
	UsedABTest   bool      `json:"used_ab_test"`
	LatencyMS    float64   `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher Kafka决策审计发布器
type Publisher struct {
	writer *kafka.Writer
	topic  string
}

// NewPublisherFromEnv 从环境变量创建发布器,KAFKA_BROKERS未设置时返回空操作实例
func NewPublisherFromEnv(topic string) *Publisher {
	brokers := os.Getenv("KAFKA_BROKERS")
	if brokers == "" {
		slog.Info("未配置Kafka Broker,决策审计流已禁用")
		return &Publisher{}
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		WriteTimeout: 3 * time.Second,
	}

	slog.Info("决策审计Kafka发布器初始化成功", "brokers", brokers, "topic", topic)
	return &Publisher{writer: writer, topic: topic}
}

// Enabled 发布器是否已配置
func (p *Publisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish 发布决策审计事件,尽力而为
func (p *Publisher) Publish(ctx context.Context, event DecisionEvent) error {
	if !p.Enabled() {
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化审计事件失败: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.RequestID),
		Value: payload,
		Time:  event.Timestamp,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("发布审计事件失败: %w", err)
	}
	return nil
}

// Close 关闭Kafka连接
func (p *Publisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
