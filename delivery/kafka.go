package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"github.com/segmentio/kafka-go"

	"github.com/hb9tf/fieldsense/sensor"
)

const (
	KafkaSinkName       = "kafka"
	defaultKafkaTimeout = 5 * time.Second
)

// MessageWriter is satisfied by *kafka.Writer.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Kafka struct {
	Writer  MessageWriter
	Timeout time.Duration
}

func NewKafka(brokers []string, topic string, timeout time.Duration) *Kafka {
	return &Kafka{
		Writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			MaxAttempts:  1,
			Async:        false,
		},
		Timeout: timeout,
	}
}

func (k Kafka) Name() string {
	return KafkaSinkName
}

// Deliver writes the batch as a single message keyed by sensor id.
func (k *Kafka) Deliver(ctx context.Context, batch *sensor.Batch) error {
	body, err := payload(batch)
	if err != nil {
		return err
	}
	timeout := k.Timeout
	if timeout <= 0 {
		timeout = defaultKafkaTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(batch.SensorID),
		Value: body,
		Time:  time.Unix(batch.Timestamp, 0),
	}
	if err := k.Writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%w: error writing batch to kafka: %s", sensor.ErrDelivery, err)
	}
	glog.V(1).Infof("wrote %d records to kafka", len(batch.Observations))
	return nil
}

func (k *Kafka) Close() error {
	return k.Writer.Close()
}
