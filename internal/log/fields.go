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
	FieldUserID     = "user_id"
	FieldSessionID  = "session_id"
	FieldCurrency   = "currency"
	FieldTheme      = "theme"
	FieldTable      = "table"
	FieldChangeKind = "change_kind"
	FieldSpendID    = "spend_id"
	FieldCategory   = "category"
	FieldAmount     = "amount_cents"
	FieldSheetRef   = "sheet_ref"
)

// Standard component names.
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentAuth    = "auth"
	ComponentPrefs   = "prefs"
	ComponentStorage = "storage"
	ComponentFeed    = "feed"
	ComponentWorker  = "worker"
	ComponentSheets  = "sheets"
)
