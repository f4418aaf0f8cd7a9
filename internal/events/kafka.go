package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	topicPartitions  = 3
	topicReplication = 1

	topicCreateTimeout = 10 * time.Second
)

// KafkaProducer delivers change notices to a Kafka topic, keyed by record id
// so changes to one record stay ordered within a partition.
type KafkaProducer struct {
	client *kgo.Client
	topic  string
}

// NewKafkaProducer connects to the given brokers and ensures the change topic
// exists with the expected partition count.
func NewKafkaProducer(brokers []string, topic string) (*KafkaProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaProducer{client: client, topic: topic}, nil
}

func ensureTopic(client *kgo.Client, topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), topicCreateTimeout)
	defer cancel()

	responses, err := kadm.NewClient(client).CreateTopics(ctx, topicPartitions, topicReplication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	for _, response := range responses {
		if response.Err != nil && !errors.Is(response.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", response.Topic, response.Err)
		}
	}
	return nil
}

func (p *KafkaProducer) Produce(ctx context.Context, notice ChangeNotice) error {
	value, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal change notice: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(notice.RecordID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce change notice: %w", err)
	}
	return nil
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}
