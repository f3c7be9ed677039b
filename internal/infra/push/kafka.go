package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	domainchat "toytrade/internal/domain/chat"
)

// KafkaNotifier emits offline-notification events for the push delivery
// pipeline to pick up. The dispatch path never waits on broker acks beyond
// the producer call itself; a failed publish is the caller's to log and drop.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewKafkaNotifier(brokers []string, topicPrefix string, logger *slog.Logger) (*KafkaNotifier, error) {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	topic := topicPrefix + "chat.notifications.v1"
	if logger != nil {
		logger.Info("kafka push producer ready", "brokers", brokers, "topic", topic)
	}
	return &KafkaNotifier{producer: producer, topic: topic, logger: logger}, nil
}

type notificationEvent struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	ConversationID string    `json:"conversationId"`
	MessageID      string    `json:"messageId"`
	SenderID       string    `json:"senderId"`
	Preview        string    `json:"preview,omitempty"`
	Type           string    `json:"type"`
	SentAt         time.Time `json:"sentAt"`
}

func (n *KafkaNotifier) NotifyOffline(ctx context.Context, userID string, msg *domainchat.Message) error {
	event := notificationEvent{
		ID:             uuid.NewString(),
		UserID:         userID,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Preview:        preview(msg),
		Type:           string(msg.Type),
		SentAt:         msg.CreatedAt,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, _, err = n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(userID),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}

// preview trims the content shown on a lock screen; media messages get a
// fixed placeholder instead of a URL.
func preview(msg *domainchat.Message) string {
	switch msg.Type {
	case domainchat.MessageImage:
		return "[photo]"
	case domainchat.MessageFile:
		return "[file]"
	}
	const max = 120
	if len(msg.Content) <= max {
		return msg.Content
	}
	return msg.Content[:max]
}
