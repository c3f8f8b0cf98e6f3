package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/playperu/cityhunt/internal/hunt"
)

// Kafka writes score events to a topic, keyed by player so a player's
// events stay ordered within a partition.
type Kafka struct {
	client   sarama.Client
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaConfig returns the producer settings used by NewKafka.
func NewKafkaConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	return config
}

// NewKafka dials brokers and returns a publisher for topic.
func NewKafka(brokers []string, topic string) (*Kafka, error) {
	client, err := sarama.NewClient(brokers, NewKafkaConfig())
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	producer, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}
	return &Kafka{client: client, producer: producer, topic: topic}, nil
}

func NewKafkaWithProducer(producer sarama.SyncProducer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func (k *Kafka) Publish(ctx context.Context, ev hunt.ScoreEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding score event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(ev.PlayerID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("session_id"), Value: []byte(ev.SessionID)},
		},
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("sending score event: %w", err)
	}
	return nil
}

// Check refreshes topic metadata. Publishers built around an injected
// producer have no client and always report healthy.
func (k *Kafka) Check(ctx context.Context) error {
	if k.client == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return k.client.RefreshMetadata(k.topic)
}

func (k *Kafka) Close() error {
	err := k.producer.Close()
	if k.client != nil {
		err = errors.Join(err, k.client.Close())
	}
	return err
}
