package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/vovakirdan/spellbound-server/internal/lobby"
)

// MatchFoundEvent is the payload written to the match_found topic.
type MatchFoundEvent struct {
	MatchID   string    `json:"matchID"`
	PlayerIDs []string  `json:"playerIDs"`
	CreatedAt time.Time `json:"createdAt"`
}

// KafkaPublisher writes match_found events keyed by session id.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates an async producer for topic.
func NewKafkaPublisher(brokers []string, topic string, logger *zerolog.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error().Err(err).Int("messages", len(messages)).Msg("kafka async write failed")
			}
		},
	}
	return &KafkaPublisher{writer: w}
}

// PublishMatchFound implements Publisher.
func (p *KafkaPublisher) PublishMatchFound(ctx context.Context, m *lobby.Match) error {
	msg, err := encodeMatchFound(m)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write match_found: %w", err)
	}
	return nil
}

// Close flushes pending writes.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encodeMatchFound(m *lobby.Match) (kafka.Message, error) {
	payload, err := json.Marshal(MatchFoundEvent{
		MatchID:   m.SessionID,
		PlayerIDs: m.Players(),
		CreatedAt: m.CreatedAt.UTC(),
	})
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal match_found: %w", err)
	}
	return kafka.Message{Key: []byte(m.SessionID), Value: payload}, nil
}
