package output

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/chrisdamba/availmap/internal/models"
)

// KafkaOutput publishes one message per zone, keyed by run and zone id.
type KafkaOutput struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaOutput(producer sarama.SyncProducer, topic string) *KafkaOutput {
	return &KafkaOutput{producer: producer, topic: topic}
}

func NewSaramaProducer(brokerList []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Retry.Backoff = 100 * time.Millisecond
	config.Producer.Return.Successes = true
	config.Net.DialTimeout = 30 * time.Second
	config.Net.ReadTimeout = 30 * time.Second
	config.Net.WriteTimeout = 30 * time.Second

	producer, err := sarama.NewSyncProducer(brokerList, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return producer, nil
}

func (k *KafkaOutput) WriteZones(ctx context.Context, runID string, zones []models.Zone) error {
	if k.producer == nil {
		return fmt.Errorf("Kafka producer is closed")
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(zones))
	for _, z := range zones {
		payload, err := json.Marshal(NewZoneRecord(runID, z))
		if err != nil {
			return err
		}
		msgs = append(msgs, &sarama.ProducerMessage{
			Topic: k.topic,
			Key:   sarama.StringEncoder(fmt.Sprintf("%s/%d", runID, z.ID)),
			Value: sarama.ByteEncoder(payload),
		})
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := k.producer.SendMessages(msgs); err != nil {
		return fmt.Errorf("failed to publish zones to %s: %w", k.topic, err)
	}
	return nil
}

func (k *KafkaOutput) Close() error {
	if k.producer == nil {
		return nil
	}
	err := k.producer.Close()
	k.producer = nil
	return err
}
