package zont

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"zont-sync-backend/internal/device"
)

// SchemaError is returned when a payload fails structural validation.
type SchemaError = device.SchemaError

// APIError is the body the cloud returns alongside ok=false.
type APIError struct {
	OK      bool   `json:"ok"`
	Code    string `json:"error"`
	Message string `json:"error_ui"`
}

// TransportError wraps network failures, deadline expiry and unexpected HTTP
// statuses that carry no API error body.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call was abandoned because its deadline passed.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// RemoteAPIError is an ok=false answer with a real error code.
type RemoteAPIError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteAPIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("zont api error %q: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("zont api error %q", e.Code)
}

// decodeAPIError interprets body as an APIError. It returns nil when the body
// is not one.
func decodeAPIError(status int, body []byte) *RemoteAPIError {
	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err != nil {
		return nil
	}
	if apiErr.OK || (apiErr.Code == "" && apiErr.Message == "") {
		return nil
	}
	return &RemoteAPIError{Status: status, Code: apiErr.Code, Message: apiErr.Message}
}
