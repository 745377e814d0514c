package log

// Field names shared across packages so log output stays greppable.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOwnerID    = "owner_id"
	FieldRecipient  = "recipient"
)

// Component names for the binaries and their subsystems.
const (
	ComponentApp       = "app"
	ComponentMail      = "mail"
	ComponentScheduler = "scheduler"
)
