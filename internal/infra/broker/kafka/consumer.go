package kafka

import (
	"context"

	"github.com/IBM/sarama"
)

// MessageHandler processes one message. Returning nil acks it; returning an
// error leaves the offset unmarked so the message is redelivered, which is
// how a payment outcome survives a transient reconcile failure.
type MessageHandler interface {
	Handle(ctx context.Context, msg *sarama.ConsumerMessage) error
}

// Consumer joins a consumer group and feeds every claimed message to the
// handler. The payment-events worker is its only user: at-least-once
// delivery is fine there because the reconciler dedups by outcome key.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
}

func NewConsumer(brokers []string, groupID string, cfg *sarama.Config, handler MessageHandler) (*Consumer, error) {
	if cfg == nil {
		cfg = sarama.NewConfig()
	}
	cfg.Version = sarama.V2_5_0_0
	g, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}
	return &Consumer{group: g, handler: handler}, nil
}

func (c *Consumer) Run(ctx context.Context, topics []string) error {
	for {
		// Consume returns on every rebalance; loop until the context ends
		if err := c.group.Consume(ctx, topics, claimRunner{handler: c.handler}); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type claimRunner struct {
	handler MessageHandler
}

func (r claimRunner) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (r claimRunner) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (r claimRunner) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := r.handler.Handle(sess.Context(), message); err != nil {
			// not marked, so the broker redelivers it after a rebalance
			continue
		}
		sess.MarkMessage(message, "")
	}
	return nil
}
