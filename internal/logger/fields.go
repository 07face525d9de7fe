package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields carried on the context logger through a call chain.
const (
	FieldRequestID = "request_id"
	FieldScanID    = "scan_id"
	FieldComponent = "component"
	FieldIssueType = "issue_type"
	FieldPersonID  = "person_id"
	// FieldOperation names the operator action (scan, fix, merge, audit...)
	FieldOperation = "operation"
)

// Metric fields attached to single entries for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldFailed     = "failed"
	FieldSize       = "size"
	FieldStatus     = "status"
)
