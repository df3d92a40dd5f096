// Package kafka 提供自成交拒绝事件的 Kafka 发送
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"

	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/metrics"
	"github.com/eidos-exchange/eidos/eidos-selftrade/internal/service"
	"github.com/eidos-exchange/eidos/eidos-selftrade/pkg/logger"
)

// TopicRiskAlerts 默认告警 topic
const TopicRiskAlerts = "risk-alerts"

// Producer Kafka 生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducer 创建 Kafka 生产者
func NewProducer(brokers []string, clientID, topic string) (*Producer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Compression = sarama.CompressionSnappy
	config.ClientID = clientID

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}

	return NewProducerWithClient(producer, topic), nil
}

// NewProducerWithClient 使用已有的 SyncProducer 创建
func NewProducerWithClient(producer sarama.SyncProducer, topic string) *Producer {
	if topic == "" {
		topic = TopicRiskAlerts
	}
	return &Producer{producer: producer, topic: topic}
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// Topic 返回目标 topic
func (p *Producer) Topic() string {
	return p.topic
}

// SendDecisionEvent 发送自成交拒绝事件, key 为股东号
func (p *Producer) SendDecisionEvent(ctx context.Context, event *service.DecisionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(event.ShareholderID),
		Value:     sarama.ByteEncoder(data),
		Timestamp: time.Now(),
		Headers: []sarama.RecordHeader{
			{Key: []byte("alert_type"), Value: []byte(event.AlertType)},
			{Key: []byte("severity"), Value: []byte(event.Severity)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		metrics.RecordKafkaMessage(p.topic, false)
		logger.Error("failed to send decision event",
			"event_id", event.EventID,
			"error", err)
		return err
	}
	metrics.RecordKafkaMessage(p.topic, true)

	logger.Debug("decision event sent",
		"event_id", event.EventID,
		"partition", partition,
		"offset", offset)

	return nil
}

// DecisionCallback 创建拒绝事件回调函数
func (p *Producer) DecisionCallback() func(ctx context.Context, event *service.DecisionEvent) error {
	return func(ctx context.Context, event *service.DecisionEvent) error {
		return p.SendDecisionEvent(ctx, event)
	}
}
