// Package kafka bridges notify events between server instances through a
// Kafka topic. Every instance publishes its own writes and re-injects the
// writes of other instances into its local hub.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/mmynk/teamtab/internal/notify"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Publisher writes change events to a Kafka topic, keyed by team id so a
// team's events stay ordered within one partition.
type Publisher struct {
	writer messageWriter
	origin string
}

// NewPublisher creates a publisher for topic. origin identifies this
// instance and is stamped on every event.
func NewPublisher(brokers []string, topic, origin string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		origin: origin,
	}
}

// Publish marshals ev to JSON and writes it synchronously.
func (p *Publisher) Publish(ctx context.Context, ev notify.Event) error {
	ev.Origin = p.origin
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.TeamID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// Listener consumes the topic and republishes foreign events locally.
type Listener struct {
	reader messageReader
	local  notify.Publisher
	origin string
}

// NewListener creates a listener. An empty groupID gives this instance its
// own consumer group so it sees every event on the topic.
func NewListener(brokers []string, topic, groupID, origin string, local notify.Publisher) *Listener {
	if groupID == "" {
		groupID = "teamtab-" + origin
	}
	return &Listener{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			StartOffset: kafka.LastOffset,
			MinBytes:    1,
			MaxBytes:    1 << 20,
		}),
		local:  local,
		origin: origin,
	}
}

// Run reads until ctx is cancelled. Malformed messages are logged and
// skipped.
func (l *Listener) Run(ctx context.Context) error {
	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to read event: %w", err)
		}

		var ev notify.Event
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			slog.Warn("Skipping malformed ledger event", "offset", msg.Offset, "error", err)
			continue
		}
		if ev.Origin == l.origin || ev.TeamID == "" {
			continue
		}

		slog.Debug("Ledger event received", "team_id", ev.TeamID, "kind", ev.Kind, "origin", ev.Origin)
		if err := l.local.Publish(ctx, ev); err != nil {
			slog.Error("Failed to deliver ledger event", "team_id", ev.TeamID, "error", err)
		}
	}
}

// Close closes the reader.
func (l *Listener) Close() error {
	return l.reader.Close()
}
