package constraints

// Cookie names carrying the session pair.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// Headers shared by the server and the Go client.
const (
	RefreshHeader       = "X-Refresh-Token"
	WebhookSecretHeader = "X-Webhook-Secret"
	RequestIDHeader     = "X-Request-ID"
	TraceIDHeader       = "X-Trace-ID"
)

// Change event types carried by the invalidation channel.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)
