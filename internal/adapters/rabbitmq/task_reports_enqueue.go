package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"flat-crawler-service/internal/constants"
	"flat-crawler-service/internal/contextkeys"
	"flat-crawler-service/internal/core/domain"
	"flat-crawler-service/internal/core/port"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// TaskReportDTO - для сообщения в task_reports_queue
type TaskReportDTO struct {
	TaskID  uuid.UUID      `json:"task_id"`
	Results map[string]int `json:"results"`
}

// TaskReporterAdapter - реализация TaskReporterPort поверх RabbitMQ.
type TaskReporterAdapter struct {
	producer   *Publisher
	routingKey string
}

func NewTaskReporterAdapter(producer *Publisher, routingKey string) (*TaskReporterAdapter, error) {
	if producer == nil {
		return nil, fmt.Errorf("rabbitmq adapter: producer cannot be nil")
	}
	if routingKey == "" {
		return nil, fmt.Errorf("rabbitmq adapter: routingKey cannot be empty")
	}
	return &TaskReporterAdapter{
		producer:   producer,
		routingKey: routingKey,
	}, nil
}

func (a *TaskReporterAdapter) ReportMatchSummary(ctx context.Context, taskID uuid.UUID, summary *domain.MatchSummary) error {
	return a.publishReport(ctx, taskID, map[string]int{
		"posts_processed": summary.Processed,
		"flats_created":   summary.Created,
		"posts_attached":  summary.Attached,
		"flats_merged":    summary.Merged,
		"posts_broken":    summary.Broken,
	})
}

func (a *TaskReporterAdapter) ReportCrawlResult(ctx context.Context, taskID uuid.UUID, report *domain.CrawlReport) error {
	return a.publishReport(ctx, taskID, map[string]int{
		"pages_fetched":  report.PagesFetched,
		"new_posts":      report.NewPosts,
		"skipped_known":  report.SkippedKnown,
		"failed_details": report.FailedDetails,
	})
}

func (a *TaskReporterAdapter) publishReport(ctx context.Context, taskID uuid.UUID, results map[string]int) error {
	logger := contextkeys.LoggerFromContext(ctx)
	adapterLogger := logger.WithFields(port.Fields{
		"component":   "TaskReporterAdapter",
		"routing_key": a.routingKey,
		"task_id":     taskID.String(),
	})

	body, err := json.Marshal(TaskReportDTO{TaskID: taskID, Results: results})
	if err != nil {
		return fmt.Errorf("rabbitmq adapter: failed to marshal report: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent, // Переживает перезапуск брокера
		Timestamp:    time.Now(),
		Headers: amqp.Table{
			"x-event-type":    constants.TaskReportEventType,
			"x-event-version": constants.TaskReportEventVersion,
		},
	}

	traceID := contextkeys.TraceIDFromContext(ctx)
	if traceID != "" {
		msg.Headers["x-trace-id"] = traceID
	}

	publishCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	adapterLogger.Info("Publishing report for task", nil)
	if err := a.producer.Publish(publishCtx, a.routingKey, msg); err != nil {
		adapterLogger.Error("Failed to publish report for task", err, nil)
		return fmt.Errorf("rabbitmq adapter: failed to publish report for task %s: %w", taskID, err)
	}
	return nil
}
