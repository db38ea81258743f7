package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	"flat-crawler-service/internal/constants"
	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/contracts"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"
	"flat-crawler-service/internal/core/port/usecases_port"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// CrawlTaskDTO - входящая задача из очереди оркестратора
type CrawlTaskDTO struct {
	TaskID uuid.UUID `json:"task_id"`
	// Kind: crawl, match или rematch
	Kind    string            `json:"kind"`
	Query   *CrawlQueryDTO    `json:"query,omitempty"`
	PostIDs []uuid.UUID       `json:"post_ids,omitempty"`
}

type CrawlQueryDTO struct {
	Name         string  `json:"name"`
	Source       string  `json:"source"`
	District     string  `json:"district"`
	MinPrice     int     `json:"min_price"`
	MaxPrice     int     `json:"max_price"`
	MinSizeM2    float64 `json:"min_size_m2"`
	MaxSizeM2    float64 `json:"max_size_m2"`
	LookbackDays int     `json:"lookback_days"`
	PageLimit    int     `json:"page_limit"`
}

// TasksConsumerAdapter слушает очередь задач и диспатчит их по use case-ам.
// Реализует EventListenerPort.
type TasksConsumerAdapter struct {
	consumer  *Consumer
	crawlUC   usecases_port.CrawlSourcePort
	matchUC   usecases_port.MatchPostsPort
	rematchUC usecases_port.RematchPostsPort
	logger    port.LoggerPort
}

func NewTasksConsumerAdapter(
	consumerCfg ConsumerConfig,
	crawlUC usecases_port.CrawlSourcePort,
	matchUC usecases_port.MatchPostsPort,
	rematchUC usecases_port.RematchPostsPort,
	logger port.LoggerPort,
	connManager *ConnectionManager,
) (*TasksConsumerAdapter, error) {
	adapter := &TasksConsumerAdapter{
		crawlUC:   crawlUC,
		matchUC:   matchUC,
		rematchUC: rematchUC,
		logger:    logger,
	}

	pkgLogger := logger.WithFields(port.Fields{
		"component":    "rabbitmq_consumer",
		"consumer_tag": consumerCfg.ConsumerTag,
	})
	consumerCfg.Logger = NewPortLoggerBridge(pkgLogger)

	consumer, err := NewConsumer(consumerCfg, adapter.messageHandler, connManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ consumer for tasks: %w", err)
	}
	adapter.consumer = consumer

	return adapter, nil
}

func (a *TasksConsumerAdapter) messageHandler(d amqp.Delivery) error {
	traceID, ok := d.Headers["x-trace-id"].(string)
	if !ok || traceID == "" {
		traceID = uuid.New().String()
	}

	msgLogger := a.logger.WithFields(port.Fields{
		"trace_id":     traceID,
		"delivery_tag": d.DeliveryTag,
	})

	ctx := context.Background()
	ctx = contextkeys.ContextWithLogger(ctx, msgLogger)
	ctx = contextkeys.ContextWithTraceID(ctx, traceID)

	msgLogger.Info("Received new crawler task", nil)

	eventType, _ := d.Headers["x-event-type"].(string)
	eventVersion, _ := d.Headers["x-event-version"].(string)
	if eventType == "" {
		eventType = constants.CrawlTaskEventType
	}
	if eventVersion == "" {
		eventVersion = constants.CrawlTaskEventVersion
	}
	if err := contracts.ValidateEvent(eventType, eventVersion, d.Body); err != nil {
		// Контрактная ошибка постоянна, повтор не поможет
		msgLogger.Error("Task message failed contract validation, dropping", err, nil)
		return nil
	}

	var taskDTO CrawlTaskDTO
	if err := json.Unmarshal(d.Body, &taskDTO); err != nil {
		msgLogger.Error("Error unmarshalling task DTO, dropping message", err, nil)
		return nil
	}

	taskLogger := msgLogger.WithFields(port.Fields{
		"task_id": taskDTO.TaskID.String(),
		"kind":    taskDTO.Kind,
	})
	ctx = contextkeys.ContextWithLogger(ctx, taskLogger)

	switch taskDTO.Kind {
	case "crawl":
		if taskDTO.Query == nil {
			taskLogger.Error("Crawl task without query, dropping", nil, nil)
			return nil
		}
		if _, err := a.crawlUC.Execute(ctx, toDomainQuery(*taskDTO.Query), taskDTO.TaskID); err != nil {
			taskLogger.Error("Crawl use case failed", err, nil)
			return err // Возвращаем ошибку для retry
		}
	case "match":
		if _, err := a.matchUC.Execute(ctx, taskDTO.TaskID); err != nil {
			taskLogger.Error("Match use case failed", err, nil)
			return err
		}
	case "rematch":
		if _, err := a.rematchUC.Execute(ctx, taskDTO.TaskID, taskDTO.PostIDs); err != nil {
			taskLogger.Error("Rematch use case failed", err, nil)
			return err
		}
	default:
		taskLogger.Error("Unknown task kind, dropping", nil, nil)
		return nil
	}

	return nil
}

func toDomainQuery(dto CrawlQueryDTO) domain.CrawlQuery {
	return domain.CrawlQuery{
		Name:         dto.Name,
		Source:       domain.Source(dto.Source),
		District:     dto.District,
		MinPrice:     dto.MinPrice,
		MaxPrice:     dto.MaxPrice,
		MinSizeM2:    dto.MinSizeM2,
		MaxSizeM2:    dto.MaxSizeM2,
		LookbackDays: dto.LookbackDays,
		PageLimit:    dto.PageLimit,
	}
}

// Start реализует EventListenerPort
func (a *TasksConsumerAdapter) Start(ctx context.Context) error {
	return a.consumer.StartConsuming(ctx)
}

// Close реализует EventListenerPort
func (a *TasksConsumerAdapter) Close() error {
	return a.consumer.Close()
}
