package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldOwnerID     = "owner_id"
	FieldRuleID      = "rule_id"
	FieldAccountID   = "account_id"
	FieldDebtID      = "debt_id"
	FieldDueDate     = "due_date"
	FieldFrequency   = "frequency"
	FieldAmountCents = "amount_cents"
	FieldDedupKey    = "dedup_key"
	FieldKind        = "kind"
	FieldCount       = "count"
)

// Components defines standard component names
const (
	ComponentApp          = "app"
	ComponentHTTP         = "http"
	ComponentStorage      = "storage"
	ComponentLedger       = "ledger"
	ComponentScheduler    = "scheduler"
	ComponentNotifier     = "notifier"
	ComponentAchievements = "achievements"
	ComponentEngine       = "engine"
	ComponentAMQP         = "amqp"
	ComponentWorker       = "worker"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpList     = "list"
	OpTick     = "tick"
	OpEvaluate = "evaluate"
	OpApply    = "apply"
	OpReverse  = "reverse"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
