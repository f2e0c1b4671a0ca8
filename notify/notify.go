// Package notify carries transient user-facing notifications and the
// shared error classifier call sites use at the UI-action boundary.
//
// Session problems never produce notifications — the session controller
// absorbs them into state changes and silent redirects. Everything else
// splits into backend business errors (shown with the backend's reason)
// and unknown errors (logged, shown generically, never fatal).
package notify

import (
	"errors"
	"log/slog"

	swissknife "github.com/swissknife-wallet/swissknife-go"
)

// Severity of a notification.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notification is a transient, non-blocking message for the user.
type Notification struct {
	Severity Severity
	Message  string
}

// Notifier displays transient notifications. Implementations must not
// block.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function into a Notifier.
type Func func(n Notification)

// Notify calls f.
func (f Func) Notify(n Notification) { f(n) }

// Slog returns a Notifier that logs notifications instead of displaying
// them, for headless hosts.
func Slog(logger *slog.Logger) Notifier {
	return Func(func(n Notification) {
		logger.Info("notification", "severity", n.Severity, "message", n.Message)
	})
}

// Surface classifies err and reports it to the notifier:
//
//   - nil: nothing happens.
//   - credential decode errors and 401s: silent — the session layer has
//     already degraded state and redirected.
//   - backend business errors ({reason, status} bodies): a warning
//     carrying the backend's reason.
//   - anything else: logged and shown as a generic error.
//
// Surface never panics and never returns an error; the render path must
// survive every failure.
func Surface(n Notifier, logger *slog.Logger, err error) {
	if err == nil || n == nil {
		return
	}

	if swissknife.IsDecodeError(err) || swissknife.IsUnauthorized(err) {
		return
	}

	var apiErr *swissknife.APIError
	if errors.As(err, &apiErr) {
		n.Notify(Notification{Severity: SeverityWarning, Message: apiErr.Reason})
		return
	}

	var refreshErr *swissknife.RefreshError
	if errors.As(err, &refreshErr) {
		// Refresh failures end in a redirect or sign-out; nothing to show.
		return
	}

	if logger != nil {
		logger.Error("unexpected error surfaced to user", "err", err)
	}
	n.Notify(Notification{Severity: SeverityError, Message: "Something went wrong. Please try again."})
}
