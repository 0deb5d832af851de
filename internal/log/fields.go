package log

// Common field names for structured logging.
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldCategoryID  = "category_id"
	FieldBudgetID    = "budget_id"
	FieldTaskID      = "task_id"
	FieldAmountCents = "amount_cents"
	FieldSpentCents  = "spent_cents"
	FieldLimitCents  = "limit_cents"
	FieldLevel       = "level"
	FieldPeriod      = "period"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldStatus      = "status"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names.
const (
	ComponentApp      = "app"
	ComponentLedger   = "ledger"
	ComponentCategory = "category"
	ComponentBudget   = "budget"
	ComponentNotify   = "notify"
	ComponentReport   = "report"
	ComponentReceipt  = "receipt"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentWorker   = "worker"
	ComponentExport   = "export"
	ComponentCache    = "cache"
)

// Operations defines standard operation names.
const (
	OpCreate    = "create"
	OpList      = "list"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpApply     = "apply"
	OpRecompute = "recompute"
	OpNotify    = "notify"
	OpAnalyze   = "analyze"
	OpExport    = "export"
	OpSweep     = "sweep"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
