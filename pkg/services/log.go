package services

import "log/slog"

// slogWarn logs a non-fatal publish failure. Event publishing is
// best-effort once the state change has committed; clients recover the
// missed event from the initial snapshot on their next reconnect.
func slogWarn(msg, sessionID string, err error) {
	slog.Warn(msg, "session_id", sessionID, "error", err)
}
