package api

import (
	"log/slog"
	"net/http"
	"time"
)

// AuditEvent identifies the type of security-relevant action being logged.
type AuditEvent string

const (
	AuditLoginSuccess        AuditEvent = "login_success"
	AuditLoginFailure        AuditEvent = "login_failure"
	AuditLogout              AuditEvent = "logout"
	AuditRegistrationCreated AuditEvent = "registration_created"
	AuditReceiptUploaded     AuditEvent = "receipt_uploaded"
	AuditSubmissionUploaded  AuditEvent = "submission_uploaded"
	AuditPaymentConfirmed    AuditEvent = "payment_confirmed"
	AuditPaymentRejected     AuditEvent = "payment_rejected"
	AuditFileDenied          AuditEvent = "file_denied"
	AuditUserCreated         AuditEvent = "user_created"
	AuditImpersonate         AuditEvent = "impersonate"
	AuditNewsCreated         AuditEvent = "news_created"
	AuditNewsUpdated         AuditEvent = "news_updated"
	AuditNewsDeleted         AuditEvent = "news_deleted"
	AuditMailFailed          AuditEvent = "mail_failed"
)

// auditLogger wraps slog.Logger for structured security audit logging.
type auditLogger struct {
	logger  *slog.Logger
	metrics *metricsCollector
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
	}
}

// log writes a structured audit log entry. User identifiers are account
// IDs, never raw credentials or tokens.
func (al *auditLogger) log(event AuditEvent, r *http.Request, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("remote_addr", r.RemoteAddr),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)

	al.logger.LogAttrs(r.Context(), slog.LevelInfo, "audit", baseAttrs...)
	if al.metrics != nil {
		al.metrics.recordEvent(event)
	}
}

// logEvent is a convenience for events with a user ID.
func (al *auditLogger) logEvent(event AuditEvent, r *http.Request, userID string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("user_id", userID),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}

// logFailure logs a denied or failed action.
func (al *auditLogger) logFailure(event AuditEvent, r *http.Request, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(event, r, attrs...)
}
