package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/sirupsen/logrus"
)

var _ Broadcaster = (*KafkaBroadcaster)(nil)

// KafkaBroadcaster appends entry change events to a topic keyed by organization,
// for consumers outside the API such as search indexers or audit logs.
type KafkaBroadcaster struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaBroadcaster(brokers, topic string) (*KafkaBroadcaster, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"client.id":         "knowledge",
		"acks":              "1",
	})
	if err != nil {
		return nil, err
	}

	k := &KafkaBroadcaster{
		producer: producer,
		topic:    topic,
	}
	go k.deliveryReports()

	return k, nil
}

func (k *KafkaBroadcaster) Broadcast(_ context.Context, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &k.topic, Partition: kafka.PartitionAny},
		Key:            []byte(msg.OrganizationID),
		Value:          data,
		Timestamp:      time.Now(),
	}, nil)
}

// Close flushes pending events and closes the producer.
func (k *KafkaBroadcaster) Close() {
	if remaining := k.producer.Flush(5000); remaining > 0 {
		logrus.Warnf("%d entry events were not delivered to kafka", remaining)
	}
	k.producer.Close()
}

func (k *KafkaBroadcaster) deliveryReports() {
	for e := range k.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				logrus.Errorf("kafka delivery failed: %v", ev.TopicPartition.Error)
			}
		case kafka.Error:
			logrus.Errorf("kafka error: %v", ev)
		}
	}
}
