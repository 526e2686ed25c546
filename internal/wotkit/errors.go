package wotkit

import (
	"fmt"
	"net/http"
)

const (
	OpFetchReadings = "fetch_readings"
	OpFetchFields   = "fetch_fields"
	OpSearchSensors = "search_sensors"
)

// NetworkError reports a transport failure, a timeout or a non-success
// HTTP status. StatusCode is zero when no response was received.
type NetworkError struct {
	Op         string
	Target     string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("wotkit %s %q: unexpected status %d %s", e.Op, e.Target, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("wotkit %s %q: %v", e.Op, e.Target, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// MalformedResponseError reports a payload that could not be decoded or is
// missing a field the dashboard depends on.
type MalformedResponseError struct {
	Op     string
	Target string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wotkit %s %q: malformed response: %s: %v", e.Op, e.Target, e.Reason, e.Err)
	}
	return fmt.Sprintf("wotkit %s %q: malformed response: %s", e.Op, e.Target, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
