package notify

import (
	"fmt"
	"time"

	log "github.com/inconshreveable/log15"
)

type OutcomeKind string

const (
	OutcomeSuccess        OutcomeKind = "success"
	OutcomeAPIError       OutcomeKind = "api_error"
	OutcomeMalformedBody  OutcomeKind = "malformed_body"
	OutcomeTransportError OutcomeKind = "transport_error"
	OutcomeDropped        OutcomeKind = "dropped"
	OutcomeInvalidNotice  OutcomeKind = "invalid_notice"
)

// Outcome is the final classification of a single report.
type Outcome struct {
	// Handle identifies the exchange. It is empty for reports that never
	// reached the network.
	Handle     string
	Kind       OutcomeKind
	StatusCode int
	// Message is the API's error message for OutcomeAPIError.
	Message string
	// Body is the raw response body, if any was received.
	Body []byte
	// Response is the decoded response body for OutcomeSuccess and
	// OutcomeAPIError.
	Response interface{}
	Err      error
	// Transient is set when Err is a network-class failure that may not recur.
	Transient bool
	Duration  time.Duration
}

type UnexpectedStatusError struct {
	StatusCode int
}

func (e *UnexpectedStatusError) Error() string {
	return fmt.Sprintf("unexpected API status: %d", e.StatusCode)
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notice API error: %s", e.Message)
}

// logOutcome writes the record for a terminal classification. Drops are
// logged where they happen and are not handled here.
func logOutcome(logger log.Logger, o Outcome) {
	switch o.Kind {
	case OutcomeSuccess:
		logger.Debug("notice delivered", "status", o.StatusCode, "response", o.Response, "duration", o.Duration)
	case OutcomeAPIError:
		logger.Error((&APIError{StatusCode: o.StatusCode, Message: o.Message}).Error(), "status", o.StatusCode)
	case OutcomeMalformedBody:
		logger.Error("malformed API response", "status", o.StatusCode, "body", string(o.Body), "error", o.Err)
	case OutcomeTransportError:
		logger.Error("notice transport failure", "error", o.Err, "transient", o.Transient)
	case OutcomeInvalidNotice:
		logger.Error("failed to compose notice", "error", o.Err)
	}
}
