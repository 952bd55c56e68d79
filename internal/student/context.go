package student

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "change_ip"
	ctxKeyUserAgent contextKey = "change_ua"
)

// ContextWithClientInfo attaches the request's client IP and user agent
// so change-log entries can attribute who made the change.
func ContextWithClientInfo(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyIPAddress, ip)
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// IPAddressFromContext extracts the client IP, or "" when absent.
func IPAddressFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyIPAddress).(string); ok {
		return v
	}
	return ""
}

// UserAgentFromContext extracts the User-Agent, or "" when absent.
func UserAgentFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUserAgent).(string); ok {
		return v
	}
	return ""
}
