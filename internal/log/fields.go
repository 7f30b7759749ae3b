package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldUserAgent  = "user_agent"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID        = "user_id"
	FieldTransactionID = "transaction_id"
	FieldCategory      = "category"
	FieldAmount        = "amount"
	FieldTimeframe     = "timeframe"
	FieldFilename      = "filename"
	FieldTotalRows     = "total_rows"
	FieldImported      = "imported"
	FieldDuplicates    = "duplicates"
	FieldFailed        = "failed"
	FieldSheetsRef     = "sheets_ref"
	FieldBatchSize     = "batch_size"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentImporter  = "importer"
	ComponentClassify  = "classify"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentInsights  = "insights"
	ComponentAnalytics = "analytics"
	ComponentCache     = "cache"
	ComponentPayments  = "payments"
)

// Operations defines standard operation names.
const (
	OpCreate   = "create"
	OpList     = "list"
	OpImport   = "import"
	OpClassify = "classify"
	OpExport   = "export"
	OpGenerate = "generate"
	OpShutdown = "shutdown"
	OpStartup  = "startup"
)
