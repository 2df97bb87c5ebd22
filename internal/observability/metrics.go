package observability

const (
	MSagaRuns            MetricKey = "saga_runs_total"
	MSagaDuration        MetricKey = "saga_duration_seconds"
	MSagaStepAttempts    MetricKey = "saga_step_attempts_total"
	MHTTPRequests        MetricKey = "http_requests_total"
	MHTTPRequestDuration MetricKey = "http_request_duration_seconds"
	MExternalRequests    MetricKey = "external_requests_total"
)
