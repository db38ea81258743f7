package rabbitmq

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageHandler обрабатывает одно сообщение. Ошибка ведет к nack с requeue
// для первой доставки и отбрасыванию для повторной.
type MessageHandler func(d amqp.Delivery) error

// ConsumerConfig конфигурация для потребителя
type ConsumerConfig struct {
	QueueName    string
	DeclareQueue bool
	DurableQueue bool
	QueueArgs    amqp.Table

	// Привязка к обменнику (если пусто, привязка не выполняется)
	ExchangeNameForBind    string
	DeclareExchangeForBind bool
	ExchangeTypeForBind    string
	DurableExchangeForBind bool
	RoutingKeyForBind      string

	PrefetchCount int
	ConsumerTag   string

	Logger Logger
}

// Consumer потребляет сообщения из одной очереди и передает их обработчику.
type Consumer struct {
	config     ConsumerConfig
	connection *amqp.Connection
	channel    *amqp.Channel
	handler    MessageHandler
	logger     Logger
	wg         sync.WaitGroup
}

// NewConsumer создает потребителя и настраивает очередь, обменник и привязку.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, connManager *ConnectionManager) (*Consumer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = NewNoopLogger()
	}
	if !cfg.DeclareQueue && cfg.QueueName == "" {
		return nil, fmt.Errorf("consumer: queue name is required if DeclareQueue is false")
	}
	if cfg.DeclareExchangeForBind && cfg.ExchangeTypeForBind == "" {
		return nil, fmt.Errorf("consumer: exchange type is required if declaring an exchange for binding")
	}

	conn, ch, err := connManager.GetChannel()
	if err != nil {
		return nil, fmt.Errorf("consumer: failed to get channel from manager: %w", err)
	}

	c := &Consumer{
		config:     cfg,
		connection: conn,
		channel:    ch,
		handler:    handler,
		logger:     logger,
	}

	if err := c.setup(); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return c, nil
}

func (c *Consumer) setup() error {
	if c.config.PrefetchCount > 0 {
		if err := c.channel.Qos(c.config.PrefetchCount, 0, false); err != nil {
			return fmt.Errorf("consumer: failed to set QoS: %w", err)
		}
	}

	if c.config.DeclareQueue {
		c.logger.Debug("Declaring queue", "name", c.config.QueueName, "durable", c.config.DurableQueue)
		_, err := c.channel.QueueDeclare(
			c.config.QueueName,
			c.config.DurableQueue,
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			c.config.QueueArgs,
		)
		if err != nil {
			return fmt.Errorf("consumer: failed to declare queue '%s': %w", c.config.QueueName, err)
		}
	}

	if c.config.DeclareExchangeForBind {
		c.logger.Debug("Declaring exchange", "name", c.config.ExchangeNameForBind, "type", c.config.ExchangeTypeForBind)
		err := c.channel.ExchangeDeclare(
			c.config.ExchangeNameForBind,
			c.config.ExchangeTypeForBind,
			c.config.DurableExchangeForBind,
			false, // auto-delete
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consumer: failed to declare exchange '%s': %w", c.config.ExchangeNameForBind, err)
		}
	}

	if c.config.ExchangeNameForBind != "" {
		c.logger.Debug("Binding queue to exchange",
			"queue_name", c.config.QueueName,
			"exchange_name", c.config.ExchangeNameForBind,
			"routing_key", c.config.RoutingKeyForBind,
		)
		err := c.channel.QueueBind(
			c.config.QueueName,
			c.config.RoutingKeyForBind,
			c.config.ExchangeNameForBind,
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consumer: failed to bind queue '%s': %w", c.config.QueueName, err)
		}
	}

	c.logger.Debug("Consumer setup complete", "queue", c.config.QueueName)
	return nil
}

// StartConsuming блокируется до отмены контекста или закрытия канала доставки.
func (c *Consumer) StartConsuming(ctx context.Context) error {
	deliveries, err := c.channel.Consume(
		c.config.QueueName,
		c.config.ConsumerTag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consumer: failed to start consuming: %w", err)
	}

	c.logger.Info("Consuming started", "queue", c.config.QueueName)
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consuming stopped by context", "queue", c.config.QueueName)
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("consumer: delivery channel closed")
			}
			c.wg.Add(1)
			c.handleDelivery(d)
			c.wg.Done()
		}
	}
}

func (c *Consumer) handleDelivery(d amqp.Delivery) {
	if err := c.handler(d); err != nil {
		// Одна повторная попытка, дальше сообщение отбрасывается
		requeue := !d.Redelivered
		c.logger.Error(err, "Message handler failed", "requeue", requeue)
		if nackErr := d.Nack(false, requeue); nackErr != nil {
			c.logger.Error(nackErr, "Failed to nack message")
		}
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		c.logger.Error(ackErr, "Failed to ack message")
	}
}

// Close дожидается обработчиков и закрывает канал
func (c *Consumer) Close() error {
	c.logger.Debug("Waiting for message handlers to finish...")
	c.wg.Wait()

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Error(err, "Error closing consumer channel")
			return err
		}
		c.channel = nil
	}
	c.logger.Info("Consumer closed")
	return nil
}
