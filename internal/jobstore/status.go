// Package jobstore persists the status record and table artifacts of each job.
package jobstore

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind tags the variant of a Status.
type Kind int

const (
	KindPending Kind = iota
	KindSuccess
	KindFailure
	KindNoTables
)

// Wire tokens for the variants that carry no code.
const (
	tokenSuccess  = "success"
	tokenNoTables = "no_tables"
)

// Messages recorded for non-failure variants.
const (
	PendingMessage  = "Extraction in progress"
	NoTablesMessage = "No tables found"
)

// ErrMalformedStatus is returned when a status record cannot be decoded.
var ErrMalformedStatus = errors.New("malformed status record")

func (k Kind) String() string {
	switch k {
	case KindPending:
		return "pending"
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindNoTables:
		return "no_tables"
	default:
		return "unknown"
	}
}

// Status is the current lifecycle state of a job.
type Status struct {
	Kind    Kind
	Code    int
	Message string
}

// Pending is the state of a dispatched job that has not resolved yet.
func Pending() Status {
	return Status{Kind: KindPending, Code: http.StatusOK, Message: PendingMessage}
}

// Success is the terminal state of a job whose artifacts are complete.
func Success() Status {
	return Status{Kind: KindSuccess, Code: http.StatusOK}
}

// NoTables is the terminal state of a job that completed without finding a table.
func NoTables() Status {
	return Status{Kind: KindNoTables, Code: http.StatusOK, Message: NoTablesMessage}
}

// Failure is the terminal state of a failed job. Codes outside 4xx/5xx become 500.
func Failure(code int, message string) Status {
	if code < 400 || code > 599 {
		code = http.StatusInternalServerError
	}
	return Status{Kind: KindFailure, Code: code, Message: message}
}

// Terminal reports whether the status will never change again.
func (s Status) Terminal() bool {
	return s.Kind != KindPending
}

// Encode renders the status as its one-line record.
func (s Status) Encode() string {
	switch s.Kind {
	case KindSuccess:
		return tokenSuccess
	case KindNoTables:
		return tokenNoTables
	default:
		return fmt.Sprintf("%d,%s", s.Code, oneLine(s.Message))
	}
}

func (s Status) String() string {
	if s.Message == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s (%d): %s", s.Kind, s.Code, s.Message)
}

// Decode parses the first line of a status record.
func Decode(record string) (Status, error) {
	line, _, _ := strings.Cut(record, "\n")
	line = strings.TrimSpace(line)

	switch line {
	case "":
		return Status{}, fmt.Errorf("%w: empty record", ErrMalformedStatus)
	case tokenSuccess:
		return Success(), nil
	case tokenNoTables:
		return NoTables(), nil
	}

	rawCode, message, ok := strings.Cut(line, ",")
	if !ok {
		return Status{}, fmt.Errorf("%w: %q has no message", ErrMalformedStatus, line)
	}

	code, err := strconv.Atoi(strings.TrimSpace(rawCode))
	if err != nil {
		return Status{}, fmt.Errorf("%w: invalid code %q", ErrMalformedStatus, rawCode)
	}
	message = strings.TrimSpace(message)

	switch {
	case code >= 200 && code <= 299:
		return Status{Kind: KindPending, Code: code, Message: message}, nil
	case code >= 400 && code <= 599:
		return Status{Kind: KindFailure, Code: code, Message: message}, nil
	default:
		return Status{}, fmt.Errorf("%w: unsupported code %d", ErrMalformedStatus, code)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
