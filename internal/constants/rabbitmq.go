package constants

// Сущности RabbitMQ, общие с оркестратором задач
const (
	TasksExchange     = "crawler.tasks.exchange"
	TasksExchangeType = "direct"

	CrawlTasksQueue      = "crawl_tasks_queue"
	CrawlTasksRoutingKey = "crawl.task"

	TaskReportsQueue      = "task_reports_queue"
	TaskReportsRoutingKey = "task.report"

	CrawlTasksConsumerTag = "flat-crawler-service"

	// Версии событийных контрактов
	CrawlTaskEventType    = "CrawlTaskEvent"
	CrawlTaskEventVersion = "1.0.0"

	TaskReportEventType    = "TaskReportEvent"
	TaskReportEventVersion = "1.0.0"
)
