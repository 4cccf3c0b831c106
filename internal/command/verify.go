package command

import (
	"encoding/json"

	"go.uber.org/zap"

	"zont-sync-backend/internal/zont"
)

// Outcome is the verified result of a command the remote side accepted.
type Outcome string

const (
	// OutcomeApplied means the remote side confirmed the change.
	OutcomeApplied Outcome = "applied"
	// OutcomeUnconfirmed means the controller did not answer in time; the
	// change may or may not have been applied.
	OutcomeUnconfirmed Outcome = "unconfirmed"
)

const ackTimeout = "timeout"

// Change describes what a command attempted, for logging.
type Change struct {
	Device string
	Target string
	Before string
	After  string
}

type ack struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	ErrorUI string `json:"error_ui"`
}

// Verify inspects a command reply. A confirmed change or a controller
// timeout succeed; any other answer is a *RemoteCommandError.
func Verify(logger *zap.Logger, resp *zont.Response, change Change) (Outcome, error) {
	fields := []zap.Field{
		zap.String("device", change.Device),
		zap.String("target", change.Target),
		zap.String("before", change.Before),
		zap.String("after", change.After),
	}

	if resp.Status < 200 || resp.Status >= 300 {
		var a ack
		if err := json.Unmarshal(resp.Body, &a); err == nil && (a.Error != "" || a.ErrorUI != "") {
			return "", &RemoteCommandError{Status: resp.Status, Code: a.Error, Message: a.ErrorUI}
		}
		return "", &RemoteCommandError{Status: resp.Status}
	}

	var a ack
	if err := json.Unmarshal(resp.Body, &a); err != nil {
		return "", &RemoteCommandError{Status: resp.Status, Code: "invalid_response"}
	}

	switch {
	case a.OK:
		logger.Info("command applied", fields...)
		return OutcomeApplied, nil
	case a.Error == ackTimeout:
		logger.Info("command sent but not confirmed by the controller", fields...)
		return OutcomeUnconfirmed, nil
	default:
		return "", &RemoteCommandError{Status: resp.Status, Code: a.Error, Message: a.ErrorUI}
	}
}
