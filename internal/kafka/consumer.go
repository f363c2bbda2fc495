package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// TicketConsumer reads ticket events for the render worker. Messages that do
// not decode are logged and skipped so one bad payload never wedges the group.
type TicketConsumer struct {
	reader *kafka.Reader
}

func NewTicketConsumer(brokers []string, groupID, topic string) *TicketConsumer {
	return &TicketConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *TicketConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *TicketConsumer) Consume(ctx context.Context, handler func(context.Context, TicketEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		event, err := decodeTicketEvent(msg.Value)
		if err != nil {
			log.Printf("skipping ticket message at offset %d: %v", msg.Offset, err)
			continue
		}

		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}

func decodeTicketEvent(data []byte) (TicketEvent, error) {
	var event TicketEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return TicketEvent{}, fmt.Errorf("decode ticket event: %w", err)
	}
	if event.ReservationCode == "" {
		return TicketEvent{}, fmt.Errorf("ticket event has no reservation code")
	}
	return event, nil
}
